package nfc

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrUnavailable is returned by Open when the host has no usable NFC reader.
var ErrUnavailable = errors.New("nfc reader not available")

// Action describes what kind of discovery an event represents.
type Action int

const (
	// TagDiscovered is reported for any tag, including tags without an NDEF message.
	TagDiscovered Action = iota
	// NDEFDiscovered is reported for tags holding at least one non-empty NDEF message.
	NDEFDiscovered
)

func (a Action) String() string {
	switch a {
	case TagDiscovered:
		return "tag"
	case NDEFDiscovered:
		return "ndef"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction is the inverse of Action.String.
func ParseAction(s string) (Action, error) {
	switch s {
	case "tag":
		return TagDiscovered, nil
	case "ndef":
		return NDEFDiscovered, nil
	}
	return 0, fmt.Errorf("unknown discovery action %q", s)
}

// DiscoveryEvent is one tag read reported by an Adapter.
type DiscoveryEvent struct {
	Action Action
	// TagID is the hex encoded UID of the tag.
	TagID string
	// Data is the raw user memory of the tag, starting at the TLV area.
	Data []byte
	Time time.Time
}

// Adapter is the NFC hardware facility. Events are only delivered while foreground receive is
// enabled, and only for actions contained in the filters passed when enabling it.
type Adapter interface {
	io.Closer
	// IsEnabled reports whether the reader is currently switched on and responding.
	IsEnabled() bool
	EnableForegroundReceive(filters []Action) error
	DisableForegroundReceive() error
	Events() <-chan DiscoveryEvent
	// StateChanges emits the new enabled state whenever it flips.
	StateChanges() <-chan bool
}

// ReaderConfig holds the wiring and timing of the reader.
type ReaderConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Bus          int           `yaml:"bus"`
	Device       int           `yaml:"device"`
	SpeedHz      int           `yaml:"speed_hz"`
	ResetPin     int           `yaml:"reset_pin"`
	IrqPin       int           `yaml:"irq_pin"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// Debounce is the number of identical consecutive reads needed before a tag counts as present.
	Debounce int `yaml:"debounce"`
	// MaxPages bounds how much user memory is read from a tag.
	MaxPages int `yaml:"max_pages"`
}

// Open returns the reader described by cfg, or ErrUnavailable when it is disabled or missing.
func Open(cfg ReaderConfig) (Adapter, error) {
	if !cfg.Enabled {
		return nil, ErrUnavailable
	}
	return createReader(cfg)
}

func accepts(filters []Action, a Action) bool {
	for _, f := range filters {
		if f == a {
			return true
		}
	}
	return false
}

// Settings describes the reader to a consumer asking for the NFC settings.
func (c ReaderConfig) Settings() map[string]interface{} {
	return map[string]interface{}{
		"bus":          c.Bus,
		"device":       c.Device,
		"speedHz":      c.SpeedHz,
		"pollInterval": c.PollInterval.String(),
		"debounce":     c.Debounce,
		"maxPages":     c.MaxPages,
	}
}
