package bridge

import (
	"context"

	"github.com/callebjorkell/nfc-bridge/channel"
	"github.com/callebjorkell/nfc-bridge/nfc"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	methodConfigure       = "configure"
	methodGotoNfcSettings = "gotoNfcSettings"
)

// SessionConfig is what a session needs to know about the surface it is bound to.
type SessionConfig struct {
	Surface string
	// ReaderSettings is handed to the consumer when it asks for the NFC settings.
	ReaderSettings map[string]interface{}
}

// Session is one consumer bound to the surface. It lives from bind to unbind and is not safe for
// concurrent use: every method must be called from the goroutine sequencing the surface.
type Session struct {
	id       string
	cfg      SessionConfig
	log      *logrus.Entry
	ctx      context.Context
	cancel   context.CancelFunc
	adapter  nfc.Adapter
	decoder  Decoder
	indicate Indicator

	available  bool
	enabled    bool
	foreground bool
	event      *nfc.DiscoveryEvent

	gate     *Gate
	latch    *Latch
	buffer   *Buffer
	dispatch *Dispatch
	delivery *Delivery
}

// NewSession binds inv to the surface. A nil adapter means the host has no NFC reader, which is
// reported to the consumer and never retried.
func NewSession(ctx context.Context, cfg SessionConfig, a nfc.Adapter, dec Decoder, inv channel.Invoker, ind Indicator) *Session {
	if ind == nil {
		ind = noIndicator{}
	}
	if dec == nil {
		dec = NDEFDecoder{}
	}
	id := uuid.New().String()
	l := logrus.WithFields(logrus.Fields{"surface": cfg.Surface, "session": id})

	s := &Session{
		id:        id,
		cfg:       cfg,
		log:       l,
		adapter:   a,
		decoder:   dec,
		indicate:  ind,
		available: a != nil,
		gate:      NewGate(),
		dispatch:  NewDispatch(a, l),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	if s.available {
		s.enabled = a.IsEnabled()
	} else {
		l.Warnln("No NFC adapter available")
	}

	s.delivery = NewDelivery(s.ctx, inv, ind, l)
	s.buffer = NewBuffer(nil, s.delivery, l)
	s.latch = NewLatch(s.buffer)
	s.buffer.ready = s.latch

	l.Infoln("Consumer bound")
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Foreground() bool {
	return s.foreground
}

// OnForegroundEnter starts receiving and processes the associated event if it was announced since
// the last time around.
func (s *Session) OnForegroundEnter() {
	s.foreground = true
	s.dispatch.Enable()
	s.checkStateChange()
	if s.available {
		s.indicate.Receiving()
	}

	if !s.gate.ShouldProcess() {
		return
	}
	s.gate.Consume()
	s.process()
}

func (s *Session) process() {
	ev := s.event
	if ev == nil {
		s.log.Debugln("No discovery event associated with the surface")
		return
	}
	if ev.Action != nfc.NDEFDiscovered {
		s.log.Debugf("Ignoring %v discovery of tag %v", ev.Action, ev.TagID)
		return
	}

	msgs, err := s.decoder.Decode(*ev)
	if err != nil {
		s.log.Errorf("Could not decode tag %v, event dropped: %v", ev.TagID, err)
		s.indicate.Failed()
		return
	}
	if len(msgs) == 0 {
		s.log.Infof("Tag %v holds no NDEF message", ev.TagID)
		return
	}
	if len(msgs) > 1 {
		s.log.Warnf("Tag %v holds %d messages, only the first one will be delivered", ev.TagID, len(msgs))
	}

	s.buffer.Offer(msgs[0])
	if s.buffer.Held() {
		s.indicate.Buffered()
	}
}

func (s *Session) OnForegroundExit() {
	s.foreground = false
	s.dispatch.Disable()
	s.indicate.Off()
}

// OnNewEventWhileForegrounded associates ev with the surface and announces it. Events of other kinds
// are not handled and leave the state untouched.
func (s *Session) OnNewEventWhileForegrounded(ev nfc.DiscoveryEvent) bool {
	switch ev.Action {
	case nfc.NDEFDiscovered, nfc.TagDiscovered:
		s.event = &ev
		s.gate.Announce()
		return true
	default:
		return false
	}
}

func (s *Session) OnSaveState() bool {
	return s.gate.Snapshot()
}

func (s *Session) OnRestoreState(pending bool) {
	s.gate.Restore(pending)
}

// OnAdapterStateChange passes a reader switching on or off to the consumer. While the surface is in
// the background the change is picked up on the next foreground entry instead.
func (s *Session) OnAdapterStateChange(enabled bool) {
	if !s.foreground {
		return
	}
	s.setEnabled(enabled)
}

func (s *Session) checkStateChange() {
	if !s.available {
		return
	}
	s.setEnabled(s.adapter.IsEnabled())
}

func (s *Session) setEnabled(enabled bool) {
	if enabled == s.enabled {
		return
	}
	s.enabled = enabled
	s.log.Infof("NFC enabled changed to %v", enabled)
	s.delivery.Notify(methodSetNfcEnabled, enabled)
}

// HandleMethodCall answers calls made by the consumer.
func (s *Session) HandleMethodCall(_ context.Context, call channel.MethodCall) channel.Result {
	switch call.Method {
	case methodConfigure:
		s.log.Infoln("Consumer configured")
		s.latch.MarkReady()
		return channel.Success(map[string]interface{}{
			"nfcAvailable": s.available,
			"nfcEnabled":   s.enabled,
		})
	case methodGotoNfcSettings:
		if !s.available {
			return channel.Error("1", "NFC settings not available.", nil)
		}
		return channel.Success(s.cfg.ReaderSettings)
	default:
		s.log.Debugf("Method %v is not implemented", call.Method)
		return channel.NotImplemented()
	}
}

// OnUnbind stops receiving and releases calls still waiting for the consumer.
func (s *Session) OnUnbind() {
	if s.foreground {
		s.OnForegroundExit()
	}
	s.cancel()
	s.log.Infoln("Consumer unbound")
}

func (s *Session) status() Status {
	return Status{
		Surface:    s.cfg.Surface,
		Session:    s.id,
		Bound:      true,
		Foreground: s.foreground,
		Available:  s.available,
		Enabled:    s.enabled,
		Configured: s.latch.IsReady(),
		Pending:    s.gate.ShouldProcess(),
		Buffered:   s.buffer.Held(),
	}
}

type noIndicator struct{}

func (noIndicator) Receiving() {}
func (noIndicator) Buffered()  {}
func (noIndicator) Delivered() {}
func (noIndicator) Failed()    {}
func (noIndicator) Off()       {}
