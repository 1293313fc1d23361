package domain

import "fmt"

// Liveness is the inferred reachability of the wearable.
type Liveness uint8

const (
	Offline Liveness = iota
	Online
)

func (l Liveness) String() string {
	if l == Online {
		return "online"
	}
	return "offline"
}

func (l Liveness) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Liveness) UnmarshalText(b []byte) error {
	switch string(b) {
	case "online":
		*l = Online
	case "offline":
		*l = Offline
	default:
		return fmt.Errorf("unknown liveness %q", b)
	}
	return nil
}
