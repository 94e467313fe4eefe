//go:build pi
// +build pi

package nfc

// MFRC522 spec can be found here: https://www.nxp.com/docs/en/data-sheet/MFRC522.pdf
// NTAG213/215/216 spec: https://www.nxp.com/docs/en/data-sheet/NTAG213_215_216.pdf

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/callebjorkell/nfc-bridge/ndef"
	"github.com/ecc1/spi"
	"github.com/jdevelop/golang-rpi-extras/rf522/commands"
	"github.com/jdevelop/gpio"
	rpio "github.com/jdevelop/gpio/rpi"
	log "github.com/sirupsen/logrus"
)

var NoCardErr = errors.New("no card detected")
var stateLock sync.Mutex
var active bool

const (
	piccRead     = 0x30
	piccSelectL1 = 0x93
	piccSelectL2 = 0x95
	userPage     = 4
)

type rfid struct {
	ResetPin    gpio.Pin
	antennaGain int
	MaxSpeedHz  int
	spiDev      *spi.Device
}

type cardReader struct {
	rfid   *rfid
	cfg    ReaderConfig
	events chan DiscoveryEvent
	states chan bool
	stop   chan interface{}

	mu        sync.Mutex
	receiving bool
	filters   []Action
	enabled   bool
}

func createReader(cfg ReaderConfig) (Adapter, error) {
	stateLock.Lock()
	if active {
		stateLock.Unlock()
		return nil, errors.New("reader already in use")
	}
	active = true
	stateLock.Unlock()

	// the IRQ pin is connected on the board, but polling has proven a lot more reliable.
	reader, err := makeRFID(cfg.Bus, cfg.Device, cfg.SpeedHz, cfg.ResetPin, cfg.IrqPin)
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c := &cardReader{
		rfid:    reader,
		cfg:     cfg,
		events:  make(chan DiscoveryEvent, 10),
		states:  make(chan bool, 1),
		stop:    make(chan interface{}),
		enabled: true,
	}
	go c.poll()
	return c, nil
}

func release() {
	stateLock.Lock()
	active = false
	stateLock.Unlock()
}

func (c *cardReader) Events() <-chan DiscoveryEvent {
	return c.events
}

func (c *cardReader) StateChanges() <-chan bool {
	return c.states
}

func (c *cardReader) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *cardReader) EnableForegroundReceive(filters []Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiving = true
	c.filters = filters
	return nil
}

func (c *cardReader) DisableForegroundReceive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiving = false
	return nil
}

func (c *cardReader) Close() error {
	close(c.stop)
	defer release()
	return c.rfid.Close()
}

func (c *cardReader) setEnabled(enabled bool) {
	c.mu.Lock()
	changed := c.enabled != enabled
	c.enabled = enabled
	c.mu.Unlock()
	if !changed {
		return
	}

	log.Infof("NFC reader enabled: %v", enabled)
	select {
	case <-c.states:
	default:
	}
	c.states <- enabled
}

func (c *cardReader) isReceiving() ([]Action, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters, c.receiving
}

func (c *cardReader) poll() {
	defer close(c.events)
	lastConfirmedId, lastSeenId := "", ""
	debounceIndex := 0
	for {
		select {
		case <-c.stop:
			log.Debugln("CardReader stopped. Returning.")
			return
		case <-time.After(c.cfg.PollInterval):
			// just do another loop
		}

		id, err := c.rfid.readCardId()
		if err != nil && err != NoCardErr {
			log.Debugf("error when reading card ID: %v", err)
		}
		c.setEnabled(!errors.Is(err, errNotResponding))

		if lastSeenId != id {
			lastSeenId = id
			debounceIndex = 0
			continue
		}

		if lastConfirmedId == id {
			continue
		}

		// debounce the card, in case we have half reads or multiple cards in the field.
		debounceIndex++
		if debounceIndex < c.cfg.Debounce {
			continue
		}
		lastConfirmedId = id
		debounceIndex = 0
		if id == "" {
			log.Debugln("Tag left the field")
			continue
		}

		filters, receiving := c.isReceiving()
		if !receiving {
			log.Debugf("Tag %v seen while foreground receive is disabled", id)
			continue
		}

		e := DiscoveryEvent{Action: TagDiscovered, TagID: id, Time: time.Now()}
		data, err := c.rfid.readUserMemory(c.cfg.MaxPages)
		if err != nil {
			log.Warnf("Could not read the memory of tag %v: %v", id, err)
		}
		if ndef.HasMessage(data) {
			e.Action = NDEFDiscovered
		}
		e.Data = data

		if !accepts(filters, e.Action) {
			log.Debugf("Tag %v (%v) filtered out", id, e.Action)
			continue
		}

		log.Debugf("Sending %v discovery for tag %v", e.Action, id)
		select {
		case c.events <- e:
		default:
			log.Warnf("Event channel full, dropping tag %v", id)
		}
	}
}

var errNotResponding = errors.New("reader is not responding")

func (r *rfid) readCardId() (string, error) {
	if err := r.init(); err != nil {
		return "", fmt.Errorf("%w: %v", errNotResponding, err)
	}
	if _, err := r.request(); err != nil {
		return "", err
	}
	data, err := r.antiColl()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(data), nil
}

// readUserMemory reads four pages at a time from the first user page until the TLV area is
// complete or maxPages have been read. The tag must have been selected.
func (r *rfid) readUserMemory(maxPages int) ([]byte, error) {
	var data []byte
	for page := userPage; page < userPage+maxPages; page += 4 {
		b, err := r.readPages(byte(page))
		if err != nil {
			return data, err
		}
		data = append(data, b...)
		if ndef.TLVComplete(data) {
			break
		}
	}
	return data, nil
}

func (r *rfid) readPages(page byte) ([]byte, error) {
	cmd := []byte{piccRead, page}
	c, err := r.crc(cmd)
	if err != nil {
		return nil, err
	}
	back, _, err := r.cardWrite(commands.PCD_TRANSCEIVE, append(cmd, c...))
	if err != nil {
		return nil, err
	}
	if len(back) < 16 {
		return nil, fmt.Errorf("short read of page %d: %d bytes", page, len(back))
	}
	return back[:16], nil
}

func makeRFID(busId, deviceId, maxSpeed, resetPin, irqPin int) (*rfid, error) {
	spiDev, err := spi.Open(fmt.Sprintf("/dev/spidev%d.%d", busId, deviceId), maxSpeed, 0)
	if err != nil {
		return nil, err
	}

	if err := spiDev.SetLSBFirst(false); err != nil {
		spiDev.Close()
		return nil, err
	}
	if err := spiDev.SetBitsPerWord(8); err != nil {
		spiDev.Close()
		return nil, err
	}

	dev := &rfid{
		spiDev:      spiDev,
		MaxSpeedHz:  maxSpeed,
		antennaGain: 7,
	}

	pin, err := rpio.OpenPin(resetPin, gpio.ModeOutput)
	if err != nil {
		spiDev.Close()
		return nil, err
	}
	dev.ResetPin = pin
	dev.ResetPin.Set()

	if _, err := rpio.OpenPin(irqPin, gpio.ModeInput); err != nil {
		spiDev.Close()
		return nil, err
	}

	if err := dev.init(); err != nil {
		spiDev.Close()
		return nil, err
	}
	return dev, nil
}

func (r *rfid) init() error {
	steps := []struct {
		address int
		data    byte
	}{
		{0x2A, 0x8D},
		{0x2B, 0x3E},
		{0x2D, 30},
		{0x2C, 0},
		{0x15, 0x40},
		{0x11, 0x3D},
		{0x26, byte(r.antennaGain) << 4},
	}
	if err := r.reset(); err != nil {
		return err
	}
	for _, s := range steps {
		if err := r.devWrite(s.address, s.data); err != nil {
			return err
		}
	}
	return r.setAntenna(true)
}

func (r *rfid) Close() error {
	return r.spiDev.Close()
}

func (r *rfid) writeSpiData(dataIn []byte) (out []byte, err error) {
	out = make([]byte, len(dataIn))
	copy(out, dataIn)
	err = r.spiDev.Transfer(out)
	return
}

func printBytes(data []byte) string {
	return fmt.Sprintf("[% x]", data)
}

func (r *rfid) devWrite(address int, data byte) (err error) {
	newData := [2]byte{(byte(address) << 1) & 0x7E, data}
	_, err = r.writeSpiData(newData[:])
	return
}

func (r *rfid) devRead(address int) (result byte, err error) {
	data := [2]byte{((byte(address) << 1) & 0x7E) | 0x80, 0}
	rb, err := r.writeSpiData(data[:])
	result = rb[1]
	return
}

func (r *rfid) setBitmask(address, mask int) (err error) {
	current, err := r.devRead(address)
	if err != nil {
		return
	}
	err = r.devWrite(address, current|byte(mask))
	return
}

func (r *rfid) clearBitmask(address, mask int) (err error) {
	current, err := r.devRead(address)
	if err != nil {
		return
	}
	err = r.devWrite(address, current&^byte(mask))
	return
}

func (r *rfid) reset() (err error) {
	err = r.devWrite(commands.CommandReg, commands.PCD_RESETPHASE)
	return
}

func (r *rfid) setAntenna(state bool) (err error) {
	if state {
		current, err := r.devRead(commands.TxControlReg)
		if err != nil {
			return err
		}
		if current&0x03 == 0 {
			err = r.setBitmask(commands.TxControlReg, 0x03)
		}
	} else {
		err = r.clearBitmask(commands.TxControlReg, 0x03)
	}
	return
}

func (r *rfid) cardWrite(command byte, data []byte) (backData []byte, backLength int, err error) {
	backData = make([]byte, 0)
	backLength = -1
	irqEn := byte(0x00)
	irqWait := byte(0x00)

	switch command {
	case commands.PCD_AUTHENT:
		irqEn = 0x12
		irqWait = 0x10
	case commands.PCD_TRANSCEIVE:
		irqEn = 0x77
		irqWait = 0x30
	}

	r.devWrite(commands.CommIEnReg, irqEn|0x80)
	r.clearBitmask(commands.CommIrqReg, 0x80)
	r.setBitmask(commands.FIFOLevelReg, 0x80)
	r.devWrite(commands.CommandReg, commands.PCD_IDLE)

	for _, v := range data {
		r.devWrite(commands.FIFODataReg, v)
	}

	r.devWrite(commands.CommandReg, command)

	if command == commands.PCD_TRANSCEIVE {
		r.setBitmask(commands.BitFramingReg, 0x80)
	}

	i := 2000
	n := byte(0)

	for ; i > 0; i-- {
		n, err = r.devRead(commands.CommIrqReg)
		if err != nil {
			return
		}
		if n&(irqWait|1) != 0 {
			break
		}
	}

	r.clearBitmask(commands.BitFramingReg, 0x80)

	if i == 0 {
		err = errors.New("can't read data after 2000 loops")
		return
	}

	if d, err1 := r.devRead(commands.ErrorReg); err1 != nil || d&0x1B != 0 {
		err = err1
		if err == nil {
			err = fmt.Errorf("error register set: %02x", d)
		}
		return
	}

	if n&irqEn&0x01 == 1 {
		err = errors.New("IRQ error")
		return
	}

	if command == commands.PCD_TRANSCEIVE {
		n, err = r.devRead(commands.FIFOLevelReg)
		if err != nil {
			return
		}
		lastBits, err1 := r.devRead(commands.ControlReg)
		if err1 != nil {
			err = err1
			return
		}
		lastBits = lastBits & 0x07
		if lastBits != 0 {
			backLength = (int(n)-1)*8 + int(lastBits)
		} else {
			backLength = int(n) * 8
		}

		if n == 0 {
			n = 1
		}

		if n > 16 {
			n = 16
		}

		for i := byte(0); i < n; i++ {
			byteVal, err1 := r.devRead(commands.FIFODataReg)
			if err1 != nil {
				err = err1
				return
			}
			backData = append(backData, byteVal)
		}
	}

	return
}

func (r *rfid) request() (backBits int, err error) {
	err = r.devWrite(commands.BitFramingReg, 0x07)
	if err != nil {
		return
	}

	_, backBits, err = r.cardWrite(commands.PCD_TRANSCEIVE, []byte{0x26})
	if err != nil {
		return -1, NoCardErr
	}
	if backBits != 0x10 {
		err = fmt.Errorf("wrong number of bits %d", backBits)
	}
	return
}

// cascade runs one anticollision round and returns the 5 bytes (4 UID bytes and BCC) reported by the tag.
func (r *rfid) cascade(level byte) ([]byte, error) {
	backData, _, err := r.cardWrite(commands.PCD_TRANSCEIVE, []byte{level, 0x20})
	if err != nil {
		return nil, err
	}
	if len(backData) != 5 {
		return nil, fmt.Errorf("back data expected 5, actual %d", len(backData))
	}

	crc := byte(0)
	for _, v := range backData[:4] {
		crc = crc ^ v
	}
	if crc != backData[4] {
		return nil, fmt.Errorf("CRC mismatch, expected %02x actual %02x", crc, backData[4])
	}
	return backData, nil
}

// selectTag selects the tag on the given cascade level and returns its SAK.
func (r *rfid) selectTag(level byte, uidPart []byte) (byte, error) {
	cmd := []byte{level, 0x70, uidPart[0], uidPart[1], uidPart[2], uidPart[3], uidPart[4]}
	c, err := r.crc(cmd)
	if err != nil {
		return 0, err
	}
	back, _, err := r.cardWrite(commands.PCD_TRANSCEIVE, append(cmd, c...))
	if err != nil {
		return 0, err
	}
	if len(back) == 0 {
		return 0, errors.New("empty select response")
	}
	return back[0], nil
}

// antiColl resolves the UID of the tag in the field and leaves the tag selected.
func (r *rfid) antiColl() ([]byte, error) {
	if err := r.devWrite(commands.BitFramingReg, 0x00); err != nil {
		return nil, err
	}

	cl1, err := r.cascade(piccSelectL1)
	if err != nil {
		return nil, err
	}
	sak, err := r.selectTag(piccSelectL1, cl1)
	if err != nil {
		return nil, err
	}
	if cl1[0] != 0x88 {
		return cl1[:4], nil
	}

	// 0x88 is the cascade tag of a 7 byte UID, so the rest is on level 2.
	if sak&0x04 == 0 {
		return nil, fmt.Errorf("unexpected L1 select response: %02x", sak)
	}
	log.Debug("cascade l2 required!")

	cl2, err := r.cascade(piccSelectL2)
	if err != nil {
		return nil, err
	}
	log.Debug("Back data ", printBytes(cl2))
	if _, err := r.selectTag(piccSelectL2, cl2); err != nil {
		return nil, err
	}

	uid := make([]byte, 7)
	copy(uid, cl1[1:4])
	copy(uid[3:], cl2[:4])
	log.Debugf("Found uid %v", hex.EncodeToString(uid))
	return uid, nil
}

func (r *rfid) crc(inData []byte) (res []byte, err error) {
	res = []byte{0, 0}
	err = r.clearBitmask(commands.DivIrqReg, 0x04)
	if err != nil {
		return
	}
	err = r.setBitmask(commands.FIFOLevelReg, 0x80)
	if err != nil {
		return
	}
	for _, v := range inData {
		r.devWrite(commands.FIFODataReg, v)
	}
	err = r.devWrite(commands.CommandReg, commands.PCD_CALCCRC)
	if err != nil {
		return
	}
	for i := byte(0xFF); i > 0; i-- {
		n, err1 := r.devRead(commands.DivIrqReg)
		if err1 != nil {
			err = err1
			return
		}
		if n&0x04 > 0 {
			break
		}
	}
	lsb, err := r.devRead(commands.CRCResultRegL)
	if err != nil {
		return
	}
	res[0] = lsb

	msb, err := r.devRead(commands.CRCResultRegM)
	if err != nil {
		return
	}
	res[1] = msb
	return
}
