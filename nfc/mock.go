//go:build !pi
// +build !pi

package nfc

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/callebjorkell/nfc-bridge/ndef"
	log "github.com/sirupsen/logrus"
)

var mockPeriod = 15 * time.Second

func createReader(cfg ReaderConfig) (Adapter, error) {
	log.Infoln("Using the mock NFC reader")
	return &mockReader{
		init:   &sync.Once{},
		events: make(chan DiscoveryEvent, 2),
		states: make(chan bool, 1),
		stop:   make(chan interface{}),
		period: mockPeriod,
	}, nil
}

// mockReader presents a tag every period, alternating between a tag carrying a text record and
// a blank tag.
type mockReader struct {
	init   *sync.Once
	events chan DiscoveryEvent
	states chan bool
	stop   chan interface{}
	period time.Duration

	mu        sync.Mutex
	receiving bool
	filters   []Action
}

func (m *mockReader) Close() error {
	close(m.stop)
	return nil
}

func (m *mockReader) IsEnabled() bool {
	return true
}

func (m *mockReader) EnableForegroundReceive(filters []Action) error {
	m.mu.Lock()
	m.receiving = true
	m.filters = filters
	m.mu.Unlock()

	m.init.Do(func() { go m.run() })
	return nil
}

func (m *mockReader) DisableForegroundReceive() error {
	m.mu.Lock()
	m.receiving = false
	m.mu.Unlock()
	return nil
}

func (m *mockReader) Events() <-chan DiscoveryEvent {
	return m.events
}

func (m *mockReader) StateChanges() <-chan bool {
	return m.states
}

func (m *mockReader) run() {
	blank := false
	for {
		select {
		case <-m.stop:
			return
		case <-time.After(m.period):
		}

		e := DiscoveryEvent{
			Action: NDEFDiscovered,
			TagID:  hex.EncodeToString([]byte{0x04, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66}),
			Data:   ndef.EncodeTLV(ndef.Message{Records: []ndef.Record{ndef.NewTextRecord("en", "hello")}}),
			Time:   time.Now(),
		}
		if blank {
			e.Action = TagDiscovered
			e.Data = []byte{0xFE}
		}
		blank = !blank

		m.mu.Lock()
		deliver := m.receiving && accepts(m.filters, e.Action)
		m.mu.Unlock()
		if !deliver {
			log.Debugf("Mock tag %v not delivered, receive disabled", e.TagID)
			continue
		}

		select {
		case m.events <- e:
		default:
			log.Warnln("Mock event channel full, dropping tag")
		}
	}
}
