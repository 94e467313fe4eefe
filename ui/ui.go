package ui

import "sync"

// Light is an RGB status light.
type Light interface {
	Red()
	Green()
	Blue()
	Yellow()
	Purple()
	Cyan()
	Off()
}

// SwitchEvent is sent when the receive switch is flipped.
type SwitchEvent struct {
	On bool
}

// StatusLight shows the state of the bridge in colour: blue while receiving, yellow when a message
// waits for the consumer, green on delivery and red when something went wrong.
type StatusLight struct {
	mu    sync.Mutex
	light Light
}

func NewStatusLight(l Light) *StatusLight {
	return &StatusLight{light: l}
}

func (s *StatusLight) Receiving() { s.show(s.light.Blue) }
func (s *StatusLight) Buffered()  { s.show(s.light.Yellow) }
func (s *StatusLight) Delivered() { s.show(s.light.Green) }
func (s *StatusLight) Failed()    { s.show(s.light.Red) }
func (s *StatusLight) Off()       { s.show(s.light.Off) }

func (s *StatusLight) show(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f()
}
