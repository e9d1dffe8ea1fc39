// Package roster implements the Peer Roster & Generation Counter
// (SPEC_FULL.md §4.6): a read-mostly list of known peers, each carrying a
// connection status, friendship state, UUID, and the roster generation at
// which it joined.
//
// The read-mostly registry shape is grounded on the teacher's inprocgrpc
// package (its handlerMap: a sync.RWMutex-guarded map, read under RLock,
// written rarely under Lock). Generation-change notification is built on
// github.com/joeycumines/go-bigbuff's Notifier, so long-lived watchers
// (e.g. a CLI "peer status" stream) can observe roster churn without
// polling.
package roster

import (
	"context"
	"sync"
	"sync/atomic"

	bigbuff "github.com/joeycumines/go-bigbuff"
)

// Friendship is the handshake state of a Peer relative to this node.
type Friendship int

const (
	FriendshipPending Friendship = iota
	FriendshipBefriended
	FriendshipRejected
)

// Peer is one node known to this node's roster.
type Peer struct {
	UUID       string
	Hostname   string
	Connected  bool
	Friendship Friendship
	Generation int64

	// RPCHandle is an opaque transport-layer handle (e.g. a *grpc.ClientConn
	// or an in-process dispatch target); the roster never interprets it.
	RPCHandle any
}

// Roster is the process-wide peer directory.
type Roster struct {
	mu         sync.RWMutex
	peers      map[string]*Peer // keyed by UUID
	generation atomic.Int64
	notifier   bigbuff.Notifier
}

// New constructs an empty Roster.
func New() *Roster {
	return &Roster{peers: make(map[string]*Peer)}
}

// Generation returns the current roster generation.
func (r *Roster) Generation() int64 {
	return r.generation.Load()
}

// Add inserts or replaces a peer, stamping it with the post-increment
// generation and broadcasting the change. Per spec.md §4.6, the generation
// is incremented on every add or remove.
func (r *Roster) Add(p Peer) {
	gen := r.generation.Add(1)
	p.Generation = gen

	r.mu.Lock()
	r.peers[p.UUID] = &p
	r.mu.Unlock()

	r.notifier.PublishContext(context.Background(), nil, gen)
}

// Remove deletes the peer with the given UUID, incrementing the generation
// regardless of whether it was present (removal of an already-absent peer
// still represents roster churn worth excluding future snapshots from).
func (r *Roster) Remove(uuid string) {
	gen := r.generation.Add(1)

	r.mu.Lock()
	delete(r.peers, uuid)
	r.mu.Unlock()

	r.notifier.PublishContext(context.Background(), nil, gen)
}

// SetConnected updates a peer's connection status in place, without
// bumping the generation: a peer's reachability can flap without it having
// joined or left the roster (spec.md's eligibility filter checks Connected
// independently of the generation snapshot).
func (r *Roster) SetConnected(uuid string, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[uuid]; ok {
		p.Connected = connected
	}
}

// Get returns a copy of the peer with the given UUID, or false if absent.
func (r *Roster) Get(uuid string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[uuid]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Snapshot returns a copy of every peer currently in the roster, alongside
// the generation observed at the moment of the read. Callers that need the
// transaction-start generation snapshot invariant (spec.md invariant 6)
// should capture Snapshot's returned generation once, at transaction start,
// and filter against it on every subsequent phase.
func (r *Roster) Snapshot() (peers []Peer, generation int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	generation = r.generation.Load()
	peers = make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, *p)
	}
	return peers, generation
}

// Eligible reports whether p may be contacted by a transaction that
// snapshotted the roster at savedGeneration, applying the three-part filter
// of spec.md §4.5: generation <= saved, connected, and befriended — unless
// relaxForSyncVolume is set, which drops the befriended requirement for the
// SYNC_VOLUME operation's relaxed eligibility rule.
func Eligible(p Peer, savedGeneration int64, relaxForSyncVolume bool) bool {
	if p.Generation > savedGeneration {
		return false
	}
	if !p.Connected {
		return false
	}
	if !relaxForSyncVolume && p.Friendship != FriendshipBefriended {
		return false
	}
	return true
}

// Watch subscribes ch to future generation-change notifications. The
// returned cancel func must be called once the caller is no longer
// interested, or ctx must be cancelled.
func (r *Roster) Watch(ctx context.Context, ch chan int64) context.CancelFunc {
	return r.notifier.SubscribeCancel(ctx, nil, ch)
}
