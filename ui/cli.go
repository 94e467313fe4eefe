//go:build !pi
// +build !pi

package ui

import (
	"github.com/sirupsen/logrus"
)

// GetColorLED returns a light that logs its colour.
func GetColorLED(red, green, blue string) (Light, error) {
	return cliLed{}, nil
}

// InitSwitch returns a switch that is never flipped.
func InitSwitch(pin string) (<-chan SwitchEvent, error) {
	logrus.Debugf("No receive switch on %v without GPIO", pin)
	return make(chan SwitchEvent), nil
}

type cliLed struct{}

func (cliLed) Purple() {
	logrus.Println("LED: Purple")
}

func (cliLed) Yellow() {
	logrus.Println("LED: Yellow")
}

func (cliLed) Cyan() {
	logrus.Println("LED: Cyan")
}

func (cliLed) Red() {
	logrus.Println("LED: Red")
}

func (cliLed) Green() {
	logrus.Println("LED: Green")
}

func (cliLed) Blue() {
	logrus.Println("LED: Blue")
}

func (cliLed) Off() {
	logrus.Println("LED: Off")
}
