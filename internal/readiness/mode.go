package readiness

import "fmt"

// Mode selects which signal marks the backend as ready.
type Mode string

const (
	ModeMarker Mode = "marker" // readiness banner in the output
	ModeHTTP   Mode = "http"   // successful HTTP probe
	ModeAny    Mode = "any"    // whichever comes first
)

// ParseMode validates a configured mode; empty means ModeMarker.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMarker:
		return ModeMarker, nil
	case ModeHTTP, ModeAny:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown readiness mode %q, must be one of: marker, http, any", s)
	}
}

func (m Mode) UsesMarker() bool { return m == ModeMarker || m == ModeAny || m == "" }

func (m Mode) UsesProbe() bool { return m == ModeHTTP || m == ModeAny }
