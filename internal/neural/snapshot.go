package neural

import (
	"errors"
	"fmt"
)

var ErrBadSnapshot = errors.New("invalid network snapshot")

// Snapshot is the serializable state of a network: its shape and the
// learned weights, keyed by layer name.
type Snapshot struct {
	Config Config               `json:"config"`
	Params map[string][]float64 `json:"params"`
}

// Snapshot copies the current weights out of the network.
func (n *Network) Snapshot() Snapshot {
	s := Snapshot{Config: n.cfg, Params: make(map[string][]float64)}
	names := n.mdl.paramNames()
	for i, p := range n.mdl.params() {
		w := make([]float64, len(p.w))
		copy(w, p.w)
		s.Params[names[i]] = w
	}
	return s
}

// FromSnapshot rebuilds a network from a snapshot. The weights replace
// the seeded initialization, so scoring behaves exactly as it did when
// the snapshot was taken.
func FromSnapshot(s Snapshot) (*Network, error) {
	n, err := New(s.Config)
	if err != nil {
		return nil, err
	}
	names := n.mdl.paramNames()
	for i, p := range n.mdl.params() {
		w, ok := s.Params[names[i]]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q weights", ErrBadSnapshot, names[i])
		}
		if len(w) != len(p.w) {
			return nil, fmt.Errorf("%w: %q holds %d weights, want %d", ErrBadSnapshot, names[i], len(w), len(p.w))
		}
		copy(p.w, w)
	}
	return n, nil
}
