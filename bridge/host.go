package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/callebjorkell/nfc-bridge/channel"
	"github.com/callebjorkell/nfc-bridge/nfc"
	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyBound = errors.New("a consumer is already bound")
	ErrNotBound     = errors.New("no consumer bound")
	ErrNotReceiving = errors.New("surface is not in the foreground")
	ErrStopped      = errors.New("host stopped")
)

// StateStore persists the admission state of a surface between runs.
type StateStore interface {
	StoreState(s nfc.SurfaceState) error
	ReadState(surface string) (nfc.SurfaceState, error)
}

type HostConfig struct {
	Surface string
	// AutoForeground brings the surface to the foreground as soon as a consumer binds.
	AutoForeground bool
	ReaderSettings map[string]interface{}
}

// Status is a snapshot of the surface and its session.
type Status struct {
	Surface    string `json:"surface"`
	Session    string `json:"session,omitempty"`
	Bound      bool   `json:"bound"`
	Foreground bool   `json:"foreground"`
	Available  bool   `json:"nfcAvailable"`
	Enabled    bool   `json:"nfcEnabled"`
	Configured bool   `json:"configured"`
	Pending    bool   `json:"pending"`
	Buffered   bool   `json:"buffered"`
}

// Host is the surface. Run executes every input on a single goroutine, which is the only place the
// session is touched.
type Host struct {
	cfg       HostConfig
	adapter   nfc.Adapter
	decoder   Decoder
	store     StateStore
	indicator Indicator
	log       *logrus.Entry

	ops  chan func()
	done chan struct{}

	// owned by the Run goroutine
	ctx     context.Context
	session *Session
	invoker channel.Invoker
}

// NewHost creates the surface. adapter is nil when there is no reader and store may be nil when
// nothing is persisted.
func NewHost(cfg HostConfig, adapter nfc.Adapter, dec Decoder, store StateStore, ind Indicator) *Host {
	if ind == nil {
		ind = noIndicator{}
	}
	return &Host{
		cfg:       cfg,
		adapter:   adapter,
		decoder:   dec,
		store:     store,
		indicator: ind,
		log:       logrus.WithField("surface", cfg.Surface),
		ops:       make(chan func()),
		done:      make(chan struct{}),
	}
}

// Run sequences the surface until ctx is cancelled. A bound consumer is unbound on the way out.
func (h *Host) Run(ctx context.Context) error {
	defer close(h.done)
	h.ctx = ctx

	var events <-chan nfc.DiscoveryEvent
	var states <-chan bool
	if h.adapter != nil {
		events = h.adapter.Events()
		states = h.adapter.StateChanges()
	}

	h.log.Infoln("Surface started")
	for {
		select {
		case <-ctx.Done():
			if h.session != nil {
				h.unbind(h.invoker)
			}
			h.indicator.Off()
			h.log.Infoln("Surface stopped")
			return nil
		case op := <-h.ops:
			op()
		case ev, ok := <-events:
			if !ok {
				h.log.Warnln("Reader stopped delivering events")
				events = nil
				continue
			}
			if err := h.discover(ev); err != nil {
				h.log.Debugf("Discovery of tag %v dropped: %v", ev.TagID, err)
			}
		case enabled, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			if h.session != nil {
				h.session.OnAdapterStateChange(enabled)
			}
		}
	}
}

// do runs f on the Run goroutine and waits for it to finish.
func (h *Host) do(f func()) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		f()
	}
	select {
	case h.ops <- op:
	case <-h.done:
		return ErrStopped
	}
	<-finished
	return nil
}

// Bind attaches the consumer behind inv. The returned handler answers its calls for as long as it
// stays bound.
func (h *Host) Bind(inv channel.Invoker) (channel.Handler, error) {
	var err error
	if e := h.do(func() { err = h.bind(inv) }); e != nil {
		return nil, e
	}
	if err != nil {
		return nil, err
	}
	return channel.HandlerFunc(func(ctx context.Context, call channel.MethodCall) channel.Result {
		r := channel.Error("unbound", "Consumer is not bound.", nil)
		h.do(func() {
			if h.session != nil && h.invoker == inv {
				r = h.session.HandleMethodCall(ctx, call)
			}
		})
		return r
	}), nil
}

func (h *Host) bind(inv channel.Invoker) error {
	if h.session != nil {
		return ErrAlreadyBound
	}

	s := NewSession(h.ctx, SessionConfig{Surface: h.cfg.Surface, ReaderSettings: h.cfg.ReaderSettings},
		h.adapter, h.decoder, inv, h.indicator)
	if h.store != nil {
		st, err := h.store.ReadState(h.cfg.Surface)
		switch {
		case err == nil:
			h.log.Debugf("Restoring pending=%v saved at %v", st.Pending, st.SavedAt)
			s.OnRestoreState(st.Pending)
		case errors.Is(err, nfc.ErrNoState):
		default:
			h.log.Warnf("Could not read saved state: %v", err)
		}
	}
	h.session, h.invoker = s, inv

	if h.cfg.AutoForeground {
		s.OnForegroundEnter()
	}
	return nil
}

// Unbind detaches inv if it is the bound consumer.
func (h *Host) Unbind(inv channel.Invoker) {
	h.do(func() { h.unbind(inv) })
}

func (h *Host) unbind(inv channel.Invoker) {
	if h.session == nil || h.invoker != inv {
		return
	}
	if h.session.Foreground() {
		h.session.OnForegroundExit()
	}
	h.save()
	h.session.OnUnbind()
	h.session, h.invoker = nil, nil
}

func (h *Host) save() {
	if h.store == nil {
		return
	}
	err := h.store.StoreState(nfc.SurfaceState{
		Surface: h.cfg.Surface,
		Pending: h.session.OnSaveState(),
		Session: h.session.ID(),
		SavedAt: time.Now(),
	})
	if err != nil {
		h.log.Errorf("Could not save state: %v", err)
	}
}

func (h *Host) EnterForeground() error {
	var err error
	if e := h.do(func() {
		if h.session == nil {
			err = ErrNotBound
			return
		}
		if !h.session.Foreground() {
			h.session.OnForegroundEnter()
		}
	}); e != nil {
		return e
	}
	return err
}

func (h *Host) ExitForeground() error {
	var err error
	if e := h.do(func() {
		if h.session == nil {
			err = ErrNotBound
			return
		}
		if h.session.Foreground() {
			h.session.OnForegroundExit()
			h.save()
		}
	}); e != nil {
		return e
	}
	return err
}

// Discover feeds ev to the surface as if the reader had reported it.
func (h *Host) Discover(ev nfc.DiscoveryEvent) error {
	var err error
	if e := h.do(func() { err = h.discover(ev) }); e != nil {
		return e
	}
	return err
}

// discover redelivers ev the way a foreground dispatch does: the surface briefly leaves the
// foreground, is handed the new event and comes back.
func (h *Host) discover(ev nfc.DiscoveryEvent) error {
	if h.session == nil {
		return ErrNotBound
	}
	if !h.session.Foreground() {
		return ErrNotReceiving
	}
	h.log.Infof("Tag %v discovered (%v)", ev.TagID, ev.Action)

	h.session.OnForegroundExit()
	if !h.session.OnNewEventWhileForegrounded(ev) {
		h.log.Debugf("Event %v not handled", ev.Action)
	}
	h.session.OnForegroundEnter()
	return nil
}

func (h *Host) Status() (Status, error) {
	var st Status
	err := h.do(func() {
		if h.session != nil {
			st = h.session.status()
			return
		}
		st = Status{Surface: h.cfg.Surface, Available: h.adapter != nil}
		if h.adapter != nil {
			st.Enabled = h.adapter.IsEnabled()
		}
	})
	return st, err
}
