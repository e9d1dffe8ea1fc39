package dispatch

import (
	"fmt"

	"github.com/joeycumines/clustermgmt/internal/lockservice"
	"github.com/joeycumines/clustermgmt/internal/wireops"
)

// lockEntriesFromDict derives the set of entities to lock from the
// dictionary keys enumerated in spec.md §6: for each known entity type, a
// `hold_<type>_locks` bool may override lockservice.DefaultHoldPolicy, a
// `<type>count` int gives the number of entities, and `<type>name<N>`
// (1-indexed) names each one.
// LockEntriesFromDict exports lockEntriesFromDict for server-side phase
// handlers outside this package (e.g. cmd/coordinatord) that need to derive
// the same lock entries a peer's incoming MGMT_V3_LOCK/MGMT_V3_UNLOCK
// request carries, without duplicating the dict-key derivation rule.
func LockEntriesFromDict(d wireops.Dict) []lockservice.Entry {
	return lockEntriesFromDict(d)
}

func lockEntriesFromDict(d wireops.Dict) []lockservice.Entry {
	var entries []lockservice.Entry
	for _, t := range []lockservice.EntityType{lockservice.EntityVolume, lockservice.EntitySnapshot, lockservice.EntityGlobal} {
		hold := lockservice.DefaultHoldPolicy(t)
		if v, ok := d.GetBool(fmt.Sprintf("hold_%s_locks", t)); ok {
			hold = v
		}
		if !hold {
			continue
		}
		count, ok := d.GetInt64(string(t) + "count")
		if !ok {
			continue
		}
		for n := int64(1); n <= count; n++ {
			name, ok := d.GetString(fmt.Sprintf("%sname%d", t, n))
			if !ok {
				continue
			}
			entries = append(entries, lockservice.Entry{Type: t, Name: name})
		}
	}
	return entries
}
