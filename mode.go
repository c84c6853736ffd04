package physync

import (
	"fmt"
	"strings"
)

// Mode selects whether a World owns the truth or mirrors it. It is fixed at construction;
// the difference is only in how drivers call Simulate and ApplyState.
type Mode uint8

const (
	// Authority worlds simulate every object and broadcast the result.
	Authority Mode = iota
	// Follower worlds predict one local object and take every other one from the network.
	Follower
)

func (m Mode) String() string {
	switch m {
	case Authority:
		return "authority"
	case Follower:
		return "follower"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode accepts "authority"/"server" and "follower"/"client", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "authority", "server":
		return Authority, nil
	case "follower", "client":
		return Follower, nil
	}
	return Authority, fmt.Errorf("physync: unknown mode %q", s)
}
