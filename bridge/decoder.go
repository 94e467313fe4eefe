package bridge

import (
	"github.com/callebjorkell/nfc-bridge/ndef"
	"github.com/callebjorkell/nfc-bridge/nfc"
)

// Decoder turns a discovery event into the NDEF messages it carries.
type Decoder interface {
	Decode(ev nfc.DiscoveryEvent) ([]ndef.Message, error)
}

// NDEFDecoder reads the messages from the TLV area of a Type 2 tag.
type NDEFDecoder struct{}

func (NDEFDecoder) Decode(ev nfc.DiscoveryEvent) ([]ndef.Message, error) {
	return ndef.ParseTLV(ev.Data)
}
