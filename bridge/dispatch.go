package bridge

import (
	"github.com/callebjorkell/nfc-bridge/nfc"
	"github.com/sirupsen/logrus"
)

var receiveFilters = []nfc.Action{nfc.NDEFDiscovered, nfc.TagDiscovered}

// Dispatch switches foreground receive of the adapter on and off. A nil adapter makes both calls no-ops.
type Dispatch struct {
	adapter nfc.Adapter
	log     *logrus.Entry
}

func NewDispatch(a nfc.Adapter, log *logrus.Entry) *Dispatch {
	return &Dispatch{adapter: a, log: log}
}

func (d *Dispatch) Enable() {
	if d.adapter == nil {
		d.log.Warnln("No NFC adapter, foreground receive not enabled")
		return
	}
	if err := d.adapter.EnableForegroundReceive(receiveFilters); err != nil {
		d.log.Errorf("Could not enable foreground receive: %v", err)
		return
	}
	d.log.Debugln("Foreground receive enabled")
}

func (d *Dispatch) Disable() {
	if d.adapter == nil {
		d.log.Warnln("No NFC adapter, foreground receive not disabled")
		return
	}
	if err := d.adapter.DisableForegroundReceive(); err != nil {
		d.log.Errorf("Could not disable foreground receive: %v", err)
		return
	}
	d.log.Debugln("Foreground receive disabled")
}
