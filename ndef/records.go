package ndef

import (
	"errors"
	"strings"
	"unicode/utf16"
)

var ErrWrongType = errors.New("ndef: record has a different type")

// URI identifier codes from the NFC Forum URI record type definition.
var uriPrefixes = []string{
	"",
	"http://www.",
	"https://www.",
	"http://",
	"https://",
	"tel:",
	"mailto:",
	"ftp://anonymous:anonymous@",
	"ftp://ftp.",
	"ftps://",
	"sftp://",
	"smb://",
	"nfs://",
	"ftp://",
	"dav://",
	"news:",
	"telnet://",
	"imap:",
	"rtsp://",
	"urn:",
	"pop:",
	"sip:",
	"sips:",
	"tftp:",
	"btspp://",
	"btl2cap://",
	"btgoep://",
	"tcpobex://",
	"irdaobex://",
	"file://",
	"urn:epc:id:",
	"urn:epc:tag:",
	"urn:epc:pat:",
	"urn:epc:raw:",
	"urn:epc:",
	"urn:nfc:",
}

// NewTextRecord creates a well-known text record with UTF-8 encoding.
func NewTextRecord(lang, text string) Record {
	payload := make([]byte, 0, 1+len(lang)+len(text))
	payload = append(payload, byte(len(lang)&0x3F))
	payload = append(payload, lang...)
	payload = append(payload, text...)
	return Record{TNF: TNFWellKnown, Type: []byte("T"), Payload: payload}
}

// NewURIRecord creates a well-known URI record, abbreviating the longest known prefix.
func NewURIRecord(uri string) Record {
	code := 0
	for i, p := range uriPrefixes {
		if p != "" && strings.HasPrefix(uri, p) && len(p) > len(uriPrefixes[code]) {
			code = i
		}
	}
	payload := append([]byte{byte(code)}, uri[len(uriPrefixes[code]):]...)
	return Record{TNF: TNFWellKnown, Type: []byte("U"), Payload: payload}
}

// Text returns the text of a well-known text record.
func (r Record) Text() (string, error) {
	if !r.isWellKnown("T") {
		return "", ErrWrongType
	}
	if len(r.Payload) == 0 {
		return "", ErrShortBuffer
	}
	status := r.Payload[0]
	langLen := int(status & 0x3F)
	if 1+langLen > len(r.Payload) {
		return "", ErrShortBuffer
	}
	body := r.Payload[1+langLen:]
	if status&0x80 == 0 {
		return string(body), nil
	}

	if len(body)%2 != 0 {
		return "", ErrShortBuffer
	}
	bigEndian := true
	if len(body) >= 2 && body[0] == 0xFF && body[1] == 0xFE {
		bigEndian = false
		body = body[2:]
	} else if len(body) >= 2 && body[0] == 0xFE && body[1] == 0xFF {
		body = body[2:]
	}
	units := make([]uint16, len(body)/2)
	for i := range units {
		if bigEndian {
			units[i] = uint16(body[2*i])<<8 | uint16(body[2*i+1])
		} else {
			units[i] = uint16(body[2*i+1])<<8 | uint16(body[2*i])
		}
	}
	return string(utf16.Decode(units)), nil
}

// URI returns the expanded URI of a well-known URI record.
func (r Record) URI() (string, error) {
	if !r.isWellKnown("U") {
		return "", ErrWrongType
	}
	if len(r.Payload) == 0 {
		return "", ErrShortBuffer
	}
	prefix := ""
	if code := int(r.Payload[0]); code < len(uriPrefixes) {
		prefix = uriPrefixes[code]
	}
	return prefix + string(r.Payload[1:]), nil
}
