package bridge

// Flusher is told when the consumer becomes ready.
type Flusher interface {
	FlushIfAny()
}

// Latch records whether the consumer has configured itself. It only ever goes from not ready to ready.
type Latch struct {
	configured bool
	flush      Flusher
}

func NewLatch(f Flusher) *Latch {
	return &Latch{flush: f}
}

// MarkReady flips the latch and flushes the buffer before returning. Calls after the first are no-ops.
func (l *Latch) MarkReady() {
	if l.configured {
		return
	}
	l.configured = true
	if l.flush != nil {
		l.flush.FlushIfAny()
	}
}

func (l *Latch) IsReady() bool {
	return l.configured
}
