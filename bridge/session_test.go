package bridge

import (
	"context"
	"testing"

	"github.com/callebjorkell/nfc-bridge/channel"
	"github.com/callebjorkell/nfc-bridge/ndef"
	"github.com/callebjorkell/nfc-bridge/nfc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDecoder struct {
	calls int
	err   error
}

func (c *countingDecoder) Decode(ev nfc.DiscoveryEvent) ([]ndef.Message, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return NDEFDecoder{}.Decode(ev)
}

func newTestSession(a nfc.Adapter) (*Session, *fakeInvoker) {
	inv := &fakeInvoker{}
	s := NewSession(context.Background(), SessionConfig{
		Surface:        "test",
		ReaderSettings: map[string]interface{}{"bus": 0},
	}, a, nil, inv, nil)
	return s, inv
}

// discover runs the cycle a foreground dispatch puts the surface through.
func discover(s *Session, ev nfc.DiscoveryEvent) {
	s.OnForegroundExit()
	s.OnNewEventWhileForegrounded(ev)
	s.OnForegroundEnter()
}

func configure(t *testing.T, s *Session) map[string]interface{} {
	r := s.HandleMethodCall(context.Background(), channel.MethodCall{Method: "configure"})
	require.Equal(t, channel.StatusSuccess, r.Status)
	return r.Value.(map[string]interface{})
}

func TestEventBufferedUntilConfigured(t *testing.T) {
	s, inv := newTestSession(newFakeAdapter())
	s.OnForegroundEnter()

	discover(s, tag("e1", message("hello")))
	s.delivery.Wait()
	assert.Empty(t, inv.invocations(methodOnMessage))
	assert.True(t, s.status().Buffered)

	configure(t, s)
	s.delivery.Wait()
	assert.Equal(t, []interface{}{"hello"}, inv.invocations(methodOnMessage))
	assert.False(t, s.status().Buffered)
}

func TestOnlyLatestEventDelivered(t *testing.T) {
	s, inv := newTestSession(newFakeAdapter())
	s.OnForegroundEnter()

	discover(s, tag("e1", message("first")))
	discover(s, tag("e2", message("second", "ignored")))
	configure(t, s)
	s.delivery.Wait()

	assert.Equal(t, []interface{}{"second"}, inv.invocations(methodOnMessage))
}

func TestDeliveredImmediatelyOnceConfigured(t *testing.T) {
	s, inv := newTestSession(newFakeAdapter())
	s.OnForegroundEnter()
	configure(t, s)

	discover(s, tag("e1", message("now")))
	s.delivery.Wait()
	assert.Equal(t, []interface{}{"now"}, inv.invocations(methodOnMessage))
}

func TestForegroundEntryProcessesEventOnce(t *testing.T) {
	dec := &countingDecoder{}
	s, _ := newTestSession(newFakeAdapter())
	s.decoder = dec
	s.OnForegroundEnter()

	s.OnForegroundExit()
	s.OnNewEventWhileForegrounded(tag("e1", message("x")))
	s.OnNewEventWhileForegrounded(tag("e1", message("x")))
	s.OnForegroundEnter()
	s.OnForegroundExit()
	s.OnForegroundEnter()

	assert.Equal(t, 1, dec.calls)
}

func TestDecodeFailureDropsEvent(t *testing.T) {
	dec := &countingDecoder{err: ndef.ErrShortBuffer}
	s, inv := newTestSession(newFakeAdapter())
	s.decoder = dec
	s.OnForegroundEnter()

	discover(s, tag("broken"))
	s.OnForegroundExit()
	s.OnForegroundEnter()
	configure(t, s)
	s.delivery.Wait()

	assert.Equal(t, 1, dec.calls)
	assert.False(t, s.status().Pending)
	assert.Empty(t, inv.invocations(methodOnMessage))
}

func TestIgnoredEvents(t *testing.T) {
	tests := []struct {
		name    string
		ev      nfc.DiscoveryEvent
		handled bool
	}{
		{"blank tag", nfc.DiscoveryEvent{Action: nfc.TagDiscovered, TagID: "blank"}, true},
		{"ndef without messages", nfc.DiscoveryEvent{Action: nfc.NDEFDiscovered, Data: []byte{0xFE}}, true},
		{"empty message", tag("empty", ndef.Message{}), true},
		{"unknown action", nfc.DiscoveryEvent{Action: nfc.Action(42)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, inv := newTestSession(newFakeAdapter())
			s.OnForegroundEnter()
			configure(t, s)

			s.OnForegroundExit()
			assert.Equal(t, tt.handled, s.OnNewEventWhileForegrounded(tt.ev))
			s.OnForegroundEnter()
			s.delivery.Wait()

			assert.Empty(t, inv.invocations(methodOnMessage))
			assert.False(t, s.status().Buffered)
		})
	}
}

func TestUnknownEventLeavesStateAlone(t *testing.T) {
	s, _ := newTestSession(newFakeAdapter())
	s.OnForegroundEnter()
	require.False(t, s.status().Pending)

	assert.False(t, s.OnNewEventWhileForegrounded(nfc.DiscoveryEvent{Action: nfc.Action(7)}))
	assert.False(t, s.status().Pending)
}

func TestDispatchFollowsForeground(t *testing.T) {
	a := newFakeAdapter()
	s, _ := newTestSession(a)

	s.OnForegroundEnter()
	assert.True(t, a.receiving())
	assert.Equal(t, []nfc.Action{nfc.NDEFDiscovered, nfc.TagDiscovered}, a.filters)

	s.OnForegroundExit()
	assert.False(t, a.receiving())

	s.OnForegroundEnter()
	s.OnUnbind()
	assert.False(t, a.receiving())
	assert.Equal(t, 2, a.enables)
	assert.Equal(t, 2, a.disables)
}

func TestConfigureReportsCapabilities(t *testing.T) {
	t.Run("with adapter", func(t *testing.T) {
		a := newFakeAdapter()
		a.setEnabled(false)
		s, _ := newTestSession(a)
		assert.Equal(t, map[string]interface{}{"nfcAvailable": true, "nfcEnabled": false}, configure(t, s))
	})

	t.Run("without adapter", func(t *testing.T) {
		s, _ := newTestSession(nil)
		s.OnForegroundEnter()
		assert.Equal(t, map[string]interface{}{"nfcAvailable": false, "nfcEnabled": false}, configure(t, s))
	})
}

func TestGotoNfcSettings(t *testing.T) {
	s, _ := newTestSession(newFakeAdapter())
	r := s.HandleMethodCall(context.Background(), channel.MethodCall{Method: "gotoNfcSettings"})
	assert.Equal(t, channel.StatusSuccess, r.Status)
	assert.Equal(t, map[string]interface{}{"bus": 0}, r.Value)

	s, _ = newTestSession(nil)
	r = s.HandleMethodCall(context.Background(), channel.MethodCall{Method: "gotoNfcSettings"})
	assert.Equal(t, channel.StatusError, r.Status)
	assert.Equal(t, "1", r.Code)
	assert.Equal(t, "NFC settings not available.", r.Message)
}

func TestUnknownMethod(t *testing.T) {
	s, _ := newTestSession(newFakeAdapter())
	r := s.HandleMethodCall(context.Background(), channel.MethodCall{Method: "scan"})
	assert.Equal(t, channel.StatusNotImplemented, r.Status)
	assert.False(t, s.status().Configured)
}

func TestAdapterStateNotifications(t *testing.T) {
	a := newFakeAdapter()
	s, inv := newTestSession(a)

	s.OnAdapterStateChange(false)
	s.delivery.Wait()
	assert.Empty(t, inv.invocations(methodSetNfcEnabled), "background changes are not sent")

	a.setEnabled(false)
	s.OnForegroundEnter()
	s.delivery.Wait()
	s.OnAdapterStateChange(false)
	s.OnAdapterStateChange(true)
	s.delivery.Wait()
	assert.Equal(t, []interface{}{false, true}, inv.invocations(methodSetNfcEnabled))
}

func TestRestoredSessionSkipsHandledEvent(t *testing.T) {
	dec := &countingDecoder{}
	s, _ := newTestSession(newFakeAdapter())
	s.decoder = dec
	s.event = &nfc.DiscoveryEvent{Action: nfc.NDEFDiscovered, Data: ndef.EncodeTLV(message("x"))}
	s.OnRestoreState(false)

	s.OnForegroundEnter()
	assert.Equal(t, 0, dec.calls)
}

func TestUnbindReleasesPendingDelivery(t *testing.T) {
	a := newFakeAdapter()
	inv := &fakeInvoker{block: true}
	s := NewSession(context.Background(), SessionConfig{Surface: "test"}, a, nil, inv, nil)
	s.OnForegroundEnter()
	configure(t, s)
	discover(s, tag("e1", message("stuck")))

	s.OnUnbind()
	s.delivery.Wait()
	assert.Equal(t, []interface{}{"stuck"}, inv.invocations(methodOnMessage))
}
