package bridge

import (
	"github.com/callebjorkell/nfc-bridge/ndef"
	"github.com/sirupsen/logrus"
)

// Readiness reports whether the consumer accepts deliveries.
type Readiness interface {
	IsReady() bool
}

// Deliverer hands a payload to the consumer.
type Deliverer interface {
	Deliver(payload []byte)
}

// Buffer holds at most one decoded message until the consumer is ready. A newer message replaces
// the held one.
type Buffer struct {
	ready   Readiness
	deliver Deliverer
	log     *logrus.Entry

	held *ndef.Message
}

func NewBuffer(r Readiness, d Deliverer, log *logrus.Entry) *Buffer {
	return &Buffer{ready: r, deliver: d, log: log}
}

// Offer delivers msg right away when the consumer is ready and holds it otherwise. A message without
// records is ignored.
func (b *Buffer) Offer(msg ndef.Message) {
	if len(msg.Records) == 0 {
		b.log.Infoln("Discovered message has no records, nothing to deliver")
		return
	}
	if n := len(msg.Records); n > 1 {
		b.log.Warnf("Message has %d records, only the first one will be delivered", n)
	}

	if b.ready.IsReady() {
		b.deliver.Deliver(msg.Records[0].Payload)
		return
	}

	if b.held != nil {
		b.log.Debugln("Replacing the buffered message")
	}
	b.held = &msg
	b.log.Infoln("Consumer is not configured yet, message buffered")
}

// FlushIfAny delivers and clears the held message, if there is one.
func (b *Buffer) FlushIfAny() {
	if b.held == nil {
		return
	}
	msg := b.held
	b.held = nil
	b.log.Infoln("Delivering buffered message")
	b.deliver.Deliver(msg.Records[0].Payload)
}

// Held reports whether a message is waiting for the consumer.
func (b *Buffer) Held() bool {
	return b.held != nil
}
