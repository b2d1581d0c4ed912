package types

import "fmt"

// ProcessId identifies a single participant inside one consensus instance.
// Rank gives the total order used for leader election and initial epoch
// timestamps; by convention (see DESIGN.md) two ProcessId values are
// considered equal when their Port matches, regardless of Host or Rank --
// the same convention the original source relies on for its membership
// bookkeeping.
type ProcessId struct {
	Host string
	Port int
	Rank int
}

func (p ProcessId) String() string {
	return fmt.Sprintf("%s:%d#%d", p.Host, p.Port, p.Rank)
}

// Equals compares two process identities by port only.
func (p ProcessId) Equals(other ProcessId) bool {
	return p.Port == other.Port
}

// Membership is the fixed, ordered list of processes participating in one
// consensus instance. It never changes for the lifetime of the instance.
type Membership struct {
	Processes []ProcessId
}

// N returns the membership size.
func (m Membership) N() int {
	return len(m.Processes)
}

// Quorum returns the minimal size strictly larger than half the membership.
func (m Membership) Quorum() int {
	return m.N()/2 + 1
}

// Find returns the ProcessId matching the given port and whether it was found.
func (m Membership) Find(port int) (ProcessId, bool) {
	for _, p := range m.Processes {
		if p.Port == port {
			return p, true
		}
	}
	return ProcessId{}, false
}

// MaxRank returns the process with the highest rank among the given
// membership, excluding anyone present in the suspected set.
func (m Membership) MaxRank(suspected map[int]struct{}) (ProcessId, bool) {
	var best ProcessId
	found := false
	for _, p := range m.Processes {
		if _, isSuspected := suspected[p.Port]; isSuspected {
			continue
		}
		if !found || p.Rank > best.Rank {
			best = p
			found = true
		}
	}
	return best, found
}

// MinRank returns the process with the lowest rank in the membership.
func (m Membership) MinRank() ProcessId {
	best := m.Processes[0]
	for _, p := range m.Processes[1:] {
		if p.Rank < best.Rank {
			best = p
		}
	}
	return best
}
