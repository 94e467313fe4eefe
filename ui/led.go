package ui

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// ColorLed is a common anode RGB LED: a pin driven low lights its colour.
type ColorLed struct {
	r gpio.PinIO
	g gpio.PinIO
	b gpio.PinIO
}

func (c *ColorLed) Green() {
	c.Off()
	c.g.Out(gpio.Low)
}

func (c *ColorLed) Blue() {
	c.Off()
	c.b.Out(gpio.Low)
}

func (c *ColorLed) Red() {
	c.Off()
	c.r.Out(gpio.Low)
}

func (c *ColorLed) Purple() {
	c.Off()
	c.r.Out(gpio.Low)
	c.b.Out(gpio.Low)
}

func (c *ColorLed) Yellow() {
	c.Off()
	c.r.Out(gpio.Low)
	c.g.Out(gpio.Low)
}

func (c *ColorLed) Cyan() {
	c.Off()
	c.g.Out(gpio.Low)
	c.b.Out(gpio.Low)
}

func (c *ColorLed) Off() {
	c.r.Out(gpio.High)
	c.g.Out(gpio.High)
	c.b.Out(gpio.High)
}

func newColorLed(r, g, b gpio.PinIO) *ColorLed {
	c := &ColorLed{r: r, g: g, b: b}
	c.Off()
	return c
}

// lookupPins finds the named pins in the gpio registry.
func lookupPins(names ...string) ([]gpio.PinIO, error) {
	pins := make([]gpio.PinIO, len(names))
	for i, n := range names {
		p := gpioreg.ByName(n)
		if p == nil {
			return nil, fmt.Errorf("no gpio pin named %q", n)
		}
		pins[i] = p
	}
	return pins, nil
}
