package core

import (
	"github.com/encodeous/strand/state"
)

// gc expires probes that were never echoed and links that were never acknowledged. Peers stuck in
// probing go back to announced so the next announce probes them again.
func gc(s *state.State) error {
	l := Get[*LinkEstimator](s)
	l.pending.DeleteExpired()
	for id, ps := range s.Peers {
		if ps == state.Probing && !l.Pending(id) {
			s.Peers[id] = state.Announced
			s.Log.Debug("probe timed out", "to", id)
		}
	}
	Get[*Admission](s).expireAcks(s)
	return nil
}
