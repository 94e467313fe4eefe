// Package ndef parses and builds NFC Data Exchange Format messages as they are stored on
// NFC Forum Type 2 tags (NTAG21x, MIFARE Ultralight).
//
// NDEF spec: https://nfc-forum.org/our-work/specification-releases/specifications/nfc-forum-technical-specifications/
package ndef

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// TNF is the Type Name Format of a record, describing how its type field should be read.
type TNF uint8

const (
	TNFEmpty       TNF = 0x00
	TNFWellKnown   TNF = 0x01
	TNFMedia       TNF = 0x02
	TNFAbsoluteURI TNF = 0x03
	TNFExternal    TNF = 0x04
	TNFUnknown     TNF = 0x05
	TNFUnchanged   TNF = 0x06
	TNFReserved    TNF = 0x07
)

const (
	flagMB  = 0x80
	flagME  = 0x40
	flagCF  = 0x20
	flagSR  = 0x10
	flagIL  = 0x08
	tnfMask = 0x07
)

var (
	ErrShortBuffer = errors.New("ndef: short buffer")
	ErrBadChunk    = errors.New("ndef: malformed chunked record")
	ErrNoBegin     = errors.New("ndef: first record is missing the message begin flag")
	ErrNoEnd       = errors.New("ndef: message end flag missing")
)

// Record is a single NDEF record. Chunked records are reassembled into one Record when parsing.
type Record struct {
	TNF     TNF
	Type    []byte
	ID      []byte
	Payload []byte
}

// Message is an ordered list of records.
type Message struct {
	Records []Record
}

func (t TNF) String() string {
	switch t {
	case TNFEmpty:
		return "empty"
	case TNFWellKnown:
		return "well-known"
	case TNFMedia:
		return "media"
	case TNFAbsoluteURI:
		return "absolute-uri"
	case TNFExternal:
		return "external"
	case TNFUnknown:
		return "unknown"
	case TNFUnchanged:
		return "unchanged"
	default:
		return "reserved"
	}
}

// ParseMessage parses one NDEF message. Empty records (TNF 0x00) carry neither type nor payload and
// are skipped, so an empty NDEF message parses to a Message without records.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if len(data) == 0 {
		return msg, nil
	}

	var chunk *Record
	off := 0
	for off < len(data) {
		h := data[off]
		if off == 0 && h&flagMB == 0 {
			return msg, ErrNoBegin
		}
		off++

		if off >= len(data) {
			return msg, ErrShortBuffer
		}
		typeLen := int(data[off])
		off++

		var payloadLen uint64
		if h&flagSR != 0 {
			if off >= len(data) {
				return msg, ErrShortBuffer
			}
			payloadLen = uint64(data[off])
			off++
		} else {
			if off+4 > len(data) {
				return msg, ErrShortBuffer
			}
			payloadLen = uint64(binary.BigEndian.Uint32(data[off : off+4]))
			off += 4
		}

		idLen := 0
		if h&flagIL != 0 {
			if off >= len(data) {
				return msg, ErrShortBuffer
			}
			idLen = int(data[off])
			off++
		}

		if uint64(off)+uint64(typeLen)+uint64(idLen)+payloadLen > uint64(len(data)) {
			return msg, ErrShortBuffer
		}
		typ := clone(data[off : off+typeLen])
		off += typeLen
		id := clone(data[off : off+idLen])
		off += idLen
		payload := clone(data[off : off+int(payloadLen)])
		off += int(payloadLen)

		tnf := TNF(h & tnfMask)
		switch {
		case chunk != nil:
			if tnf != TNFUnchanged || typeLen != 0 {
				return msg, ErrBadChunk
			}
			chunk.Payload = append(chunk.Payload, payload...)
			if h&flagCF == 0 {
				msg.Records = append(msg.Records, *chunk)
				chunk = nil
			}
		case tnf == TNFUnchanged:
			return msg, ErrBadChunk
		case h&flagCF != 0:
			chunk = &Record{TNF: tnf, Type: typ, ID: id, Payload: payload}
		case tnf == TNFEmpty:
			// nothing to keep
		default:
			msg.Records = append(msg.Records, Record{TNF: tnf, Type: typ, ID: id, Payload: payload})
		}

		if h&flagME != 0 {
			if chunk != nil {
				return msg, ErrBadChunk
			}
			return msg, nil
		}
	}
	return msg, ErrNoEnd
}

// Marshal encodes the message. A message without records encodes as a single empty record.
func (m Message) Marshal() []byte {
	if len(m.Records) == 0 {
		return []byte{flagMB | flagME | flagSR | byte(TNFEmpty), 0x00, 0x00}
	}

	var buf bytes.Buffer
	for i, r := range m.Records {
		h := byte(r.TNF) & tnfMask
		if i == 0 {
			h |= flagMB
		}
		if i == len(m.Records)-1 {
			h |= flagME
		}
		short := len(r.Payload) < 256
		if short {
			h |= flagSR
		}
		if len(r.ID) > 0 {
			h |= flagIL
		}

		buf.WriteByte(h)
		buf.WriteByte(byte(len(r.Type)))
		if short {
			buf.WriteByte(byte(len(r.Payload)))
		} else {
			var l [4]byte
			binary.BigEndian.PutUint32(l[:], uint32(len(r.Payload)))
			buf.Write(l[:])
		}
		if len(r.ID) > 0 {
			buf.WriteByte(byte(len(r.ID)))
		}
		buf.Write(r.Type)
		buf.Write(r.ID)
		buf.Write(r.Payload)
	}
	return buf.Bytes()
}

func (r Record) String() string {
	switch {
	case r.isWellKnown("T"):
		if s, err := r.Text(); err == nil {
			return fmt.Sprintf("text: %v", s)
		}
	case r.isWellKnown("U"):
		if s, err := r.URI(); err == nil {
			return fmt.Sprintf("uri: %v", s)
		}
	}
	return fmt.Sprintf("%v %q: %d bytes", r.TNF, r.Type, len(r.Payload))
}

func (r Record) isWellKnown(t string) bool {
	return r.TNF == TNFWellKnown && string(r.Type) == t
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
