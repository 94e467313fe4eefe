package bridge

import (
	"context"
	"sync"

	"github.com/callebjorkell/nfc-bridge/channel"
	"github.com/callebjorkell/nfc-bridge/ndef"
	"github.com/callebjorkell/nfc-bridge/nfc"
	"github.com/sirupsen/logrus"
)

var testLog = logrus.WithField("test", true)

type invocation struct {
	method string
	args   interface{}
}

type fakeInvoker struct {
	mu      sync.Mutex
	calls   []invocation
	results map[string]channel.Result
	err     error
	block   bool
}

func (f *fakeInvoker) InvokeMethod(ctx context.Context, method string, args interface{}) (channel.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, invocation{method, args})
	r, ok := f.results[method]
	err, block := f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return channel.Result{}, ctx.Err()
	}
	if !ok {
		r = channel.Success(nil)
	}
	return r, err
}

func (f *fakeInvoker) invocations(method string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var args []interface{}
	for _, c := range f.calls {
		if c.method == method {
			args = append(args, c.args)
		}
	}
	return args
}

type fakeAdapter struct {
	mu       sync.Mutex
	enabled  bool
	on       bool
	filters  []nfc.Action
	enables  int
	disables int

	events chan nfc.DiscoveryEvent
	states chan bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		enabled: true,
		events:  make(chan nfc.DiscoveryEvent),
		states:  make(chan bool),
	}
}

func (f *fakeAdapter) Close() error { return nil }

func (f *fakeAdapter) IsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeAdapter) setEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

func (f *fakeAdapter) EnableForegroundReceive(filters []nfc.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = true
	f.filters = filters
	f.enables++
	return nil
}

func (f *fakeAdapter) DisableForegroundReceive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = false
	f.disables++
	return nil
}

func (f *fakeAdapter) receiving() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

func (f *fakeAdapter) Events() <-chan nfc.DiscoveryEvent { return f.events }
func (f *fakeAdapter) StateChanges() <-chan bool         { return f.states }

type fakeIndicator struct {
	mu    sync.Mutex
	shown []string
}

func (f *fakeIndicator) show(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, s)
}

func (f *fakeIndicator) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.shown) == 0 {
		return ""
	}
	return f.shown[len(f.shown)-1]
}

func (f *fakeIndicator) Receiving() { f.show("receiving") }
func (f *fakeIndicator) Buffered()  { f.show("buffered") }
func (f *fakeIndicator) Delivered() { f.show("delivered") }
func (f *fakeIndicator) Failed()    { f.show("failed") }
func (f *fakeIndicator) Off()       { f.show("off") }

type recordingDeliverer struct {
	payloads []string
}

func (r *recordingDeliverer) Deliver(payload []byte) {
	r.payloads = append(r.payloads, string(payload))
}

type staticReadiness bool

func (s *staticReadiness) IsReady() bool { return bool(*s) }

func message(payloads ...string) ndef.Message {
	var m ndef.Message
	for _, p := range payloads {
		m.Records = append(m.Records, ndef.Record{TNF: ndef.TNFMedia, Type: []byte("text/plain"), Payload: []byte(p)})
	}
	return m
}

func tag(id string, msgs ...ndef.Message) nfc.DiscoveryEvent {
	return nfc.DiscoveryEvent{Action: nfc.NDEFDiscovered, TagID: id, Data: ndef.EncodeTLV(msgs...)}
}
