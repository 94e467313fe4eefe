package bridge

// Gate decides whether the event associated with the surface still needs processing. A new gate
// starts pending: a cold start implicitly announces whatever event the surface was started with.
type Gate struct {
	pending bool
}

func NewGate() *Gate {
	return &Gate{pending: true}
}

// Announce marks the associated event as needing processing. Repeated announcements collapse into one.
func (g *Gate) Announce() {
	g.pending = true
}

func (g *Gate) ShouldProcess() bool {
	return g.pending
}

// Consume clears the pending flag. It is called before any decoding takes place, so an event that
// fails to decode is dropped rather than processed again.
func (g *Gate) Consume() {
	g.pending = false
}

// Restore seeds the flag from a snapshot taken by a previous incarnation of the surface.
func (g *Gate) Restore(saved bool) {
	g.pending = saved
}

func (g *Gate) Snapshot() bool {
	return g.pending
}
