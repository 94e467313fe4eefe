//go:build pi
// +build pi

package ui

import (
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/host"
)

func init() {
	if _, err := host.Init(); err != nil {
		logrus.Fatalln("Unable to initialize periph:", err)
	}
}

// GetColorLED returns the LED wired to the given pins, all switched off.
func GetColorLED(red, green, blue string) (Light, error) {
	logrus.Infoln("Initializing LED")
	pins, err := lookupPins(red, green, blue)
	if err != nil {
		return nil, err
	}
	return newColorLed(pins[0], pins[1], pins[2]), nil
}

// InitSwitch watches the receive switch on pin. The current position is sent right away.
func InitSwitch(pin string) (<-chan SwitchEvent, error) {
	logrus.Infoln("Initializing receive switch")
	pins, err := lookupPins(pin)
	if err != nil {
		return nil, err
	}
	b := pins[0]
	if err := b.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, err
	}

	c := make(chan SwitchEvent, 10)
	last := b.Read()
	c <- SwitchEvent{On: last == gpio.Low}
	go handleSwitch(b, last, c)
	return c, nil
}

func handleSwitch(b gpio.PinIO, last gpio.Level, c chan SwitchEvent) {
	logrus.Debugln("Handling switch ", b.Name())
	for {
		// wait for the edge
		if !b.WaitForEdge(time.Second) {
			continue
		}

		// debounce
		l := b.Read()
		if l == last {
			continue
		}

		time.Sleep(50 * time.Millisecond)
		if l == b.Read() {
			last = l
			c <- SwitchEvent{On: l == gpio.Low}
		}
	}
}
