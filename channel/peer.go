package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// peer holds what stream and MQTT transports share: call correlation and dispatch of inbound
// envelopes. send must be safe for concurrent use.
type peer struct {
	codec Codec
	send  func(body []byte) error
	log   *logrus.Entry

	mu      sync.Mutex
	pending map[string]chan Result
	closed  bool
	done    chan struct{}
}

func newPeer(codec Codec, send func([]byte) error, log *logrus.Entry) *peer {
	return &peer{
		codec:   codec,
		send:    send,
		log:     log,
		pending: make(map[string]chan Result),
		done:    make(chan struct{}),
	}
}

func (p *peer) invoke(ctx context.Context, method string, args interface{}) (Result, error) {
	id := uuid.New().String()
	reply := make(chan Result, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Result{}, ErrClosed
	}
	p.pending[id] = reply
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err := p.write(callEnvelope(id, method, args)); err != nil {
		return Result{}, err
	}

	select {
	case r := <-reply:
		return r, nil
	case <-p.done:
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (p *peer) write(e envelope) error {
	body, err := p.codec.Marshal(e)
	if err != nil {
		return fmt.Errorf("could not encode %v: %w", e.ID, err)
	}
	return p.send(body)
}

// receive decodes one inbound body. Calls are answered through h, or with not-implemented when h
// is nil or the call names no method; replies complete the pending call with the same id.
func (p *peer) receive(ctx context.Context, body []byte, h Handler) {
	var e envelope
	if err := p.codec.Unmarshal(body, &e); err != nil {
		p.log.Warnf("Dropping undecodable %v frame: %v", p.codec.Name(), err)
		return
	}

	if e.isCall() {
		r := NotImplemented()
		if h != nil && e.Method != "" {
			r = h.HandleMethodCall(ctx, MethodCall{Method: e.Method, Args: e.Args})
		}
		if err := p.write(replyEnvelope(e.ID, r)); err != nil {
			p.log.Warnf("Could not answer %v: %v", e.Method, err)
		}
		return
	}

	r, err := e.result()
	if err != nil {
		p.log.Warnf("Dropping reply %v: %v", e.ID, err)
		return
	}
	p.mu.Lock()
	reply, ok := p.pending[e.ID]
	p.mu.Unlock()
	if !ok {
		p.log.Debugf("Reply %v does not match any pending call", e.ID)
		return
	}
	select {
	case reply <- r:
	default:
		p.log.Debugf("Duplicate reply %v ignored", e.ID)
	}
}

// close fails every pending and future call with ErrClosed.
func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
}
