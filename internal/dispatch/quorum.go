package dispatch

import "fmt"

// QuorumPolicy is the supplemented feature grounded on
// glusterd-server-quorum.c's commit-phase gate (SPEC_FULL.md's
// Supplemented Features section): when Enabled, the commit phase is
// refused unless at least MinPeerFraction of the transaction's eligible
// peer set is reachable. Disabled by default, matching spec.md's silence
// on quorum.
type QuorumPolicy struct {
	Enabled         bool
	MinPeerFraction float64
}

// errQuorumNotMet is returned by checkQuorum when the reachable fraction
// falls below the configured minimum.
type errQuorumNotMet struct {
	reachable, total int
	required         float64
}

func (e errQuorumNotMet) Error() string {
	return fmt.Sprintf("dispatch: quorum not met: %d/%d peers reachable, require >= %.2f fraction", e.reachable, e.total, e.required)
}

// checkQuorum reports whether the policy is satisfied for a transaction
// whose eligible peer set has size total and whose reachable (responding)
// count is reachable. A disabled policy, or a transaction with no
// eligible peers, is always satisfied.
func checkQuorum(policy QuorumPolicy, reachable, total int) error {
	if !policy.Enabled || total == 0 {
		return nil
	}
	frac := float64(reachable) / float64(total)
	if frac < policy.MinPeerFraction {
		return errQuorumNotMet{reachable: reachable, total: total, required: policy.MinPeerFraction}
	}
	return nil
}
