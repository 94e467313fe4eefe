package channel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// MaxFrameSize bounds a single frame body.
const MaxFrameSize = 1 << 20

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Stream carries the method channel over a byte stream using 4 byte big-endian length prefixed
// frames.
type Stream struct {
	*peer
	conn io.ReadWriteCloser

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewStream(conn io.ReadWriteCloser, codec Codec) *Stream {
	s := &Stream{conn: conn}
	s.peer = newPeer(codec, s.writeFrame, logrus.WithField("transport", "stream"))
	return s
}

func (s *Stream) InvokeMethod(ctx context.Context, method string, args interface{}) (Result, error) {
	return s.invoke(ctx, method, args)
}

// Serve reads frames until the stream ends, ctx is cancelled or the stream is closed, answering
// inbound calls with h. A stream that ends cleanly returns nil.
func (s *Stream) Serve(ctx context.Context, h Handler) error {
	defer s.Close()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	for {
		body, err := s.readFrame()
		if err != nil {
			if err == io.EOF || ctx.Err() != nil || s.isClosed() {
				return nil
			}
			return err
		}
		s.receive(ctx, body, h)
	}
}

func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.close()
		err = s.conn.Close()
	})
	return err
}

func (s *Stream) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Stream) readFrame() ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(s.conn, prefix[:]); err != nil {
		return nil, err
	}
	l := binary.BigEndian.Uint32(prefix[:])
	if l > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, l)
	}
	body := make([]byte, l)
	if _, err := io.ReadFull(s.conn, body); err != nil {
		return nil, fmt.Errorf("could not read frame body: %w", err)
	}
	return body, nil
}

func (s *Stream) writeFrame(body []byte) error {
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("could not write frame: %w", err)
	}
	return nil
}
