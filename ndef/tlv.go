package ndef

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Type 2 tag TLV block types.
const (
	tlvNull          = 0x00
	tlvLockControl   = 0x01
	tlvMemoryControl = 0x02
	tlvNDEF          = 0x03
	tlvProprietary   = 0xFD
	tlvTerminator    = 0xFE
)

type tlv struct {
	typ   byte
	value []byte
}

var errNoTerminator = errors.New("ndef: tlv terminator missing")

// walkTLV visits every TLV block in data until the terminator. It returns the offset just past the
// terminator, ErrShortBuffer when data ends inside a block, or errNoTerminator when data ends on a
// block boundary without a terminator.
func walkTLV(data []byte, visit func(tlv) error) (int, error) {
	off := 0
	for off < len(data) {
		t := data[off]
		off++
		switch t {
		case tlvNull:
			continue
		case tlvTerminator:
			return off, nil
		}

		if off >= len(data) {
			return off, ErrShortBuffer
		}
		l := int(data[off])
		off++
		if l == 0xFF {
			if off+2 > len(data) {
				return off, ErrShortBuffer
			}
			l = int(binary.BigEndian.Uint16(data[off : off+2]))
			off += 2
		}
		if off+l > len(data) {
			return off, ErrShortBuffer
		}
		if err := visit(tlv{typ: t, value: data[off : off+l]}); err != nil {
			return off, err
		}
		off += l
	}
	return off, errNoTerminator
}

// ParseTLV extracts every NDEF message from the TLV area of a Type 2 tag (user memory from page 4).
// Data ending without a terminator is accepted as long as it does not end inside a block.
func ParseTLV(data []byte) ([]Message, error) {
	var msgs []Message
	_, err := walkTLV(data, func(b tlv) error {
		if b.typ != tlvNDEF {
			return nil
		}
		m, err := ParseMessage(b.value)
		if err != nil {
			return fmt.Errorf("ndef: message %d: %w", len(msgs), err)
		}
		msgs = append(msgs, m)
		return nil
	})
	if err == errNoTerminator {
		err = nil
	}
	return msgs, err
}

// TLVComplete reports whether data holds the TLV area up to and including the terminator. Readers
// use it to decide when to stop reading pages.
func TLVComplete(data []byte) bool {
	_, err := walkTLV(data, func(tlv) error { return nil })
	return err == nil
}

// HasMessage reports whether the TLV area holds an NDEF block with content.
func HasMessage(data []byte) bool {
	found := false
	walkTLV(data, func(b tlv) error {
		if b.typ == tlvNDEF && len(b.value) > 0 {
			found = true
		}
		return nil
	})
	return found
}

// EncodeTLV writes the messages as NDEF TLV blocks followed by a terminator.
func EncodeTLV(msgs ...Message) []byte {
	var buf bytes.Buffer
	for _, m := range msgs {
		b := m.Marshal()
		buf.WriteByte(tlvNDEF)
		if len(b) < 0xFF {
			buf.WriteByte(byte(len(b)))
		} else {
			buf.WriteByte(0xFF)
			var l [2]byte
			binary.BigEndian.PutUint16(l[:], uint16(len(b)))
			buf.Write(l[:])
		}
		buf.Write(b)
	}
	buf.WriteByte(tlvTerminator)
	return buf.Bytes()
}
