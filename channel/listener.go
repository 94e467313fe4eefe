package channel

import (
	"context"
	"net"

	log "github.com/sirupsen/logrus"
)

// Binder attaches a consumer to the bridge. Bind fails while another consumer is attached.
type Binder interface {
	Bind(inv Invoker) (Handler, error)
	Unbind(inv Invoker)
}

// ServeListener accepts consumer connections until ctx is cancelled. Every connection is bound for
// as long as it stays open; connections arriving while a consumer is bound are closed right away.
func ServeListener(ctx context.Context, ln net.Listener, codec Codec, b Binder) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		st := NewStream(conn, codec)
		h, err := b.Bind(st)
		if err != nil {
			log.Warnf("Rejecting consumer %v: %v", conn.RemoteAddr(), err)
			st.Close()
			continue
		}
		log.Infof("Consumer %v connected", conn.RemoteAddr())

		go func(addr net.Addr) {
			defer b.Unbind(st)
			if err := st.Serve(ctx, h); err != nil {
				log.Warnf("Consumer %v: %v", addr, err)
			}
			log.Infof("Consumer %v disconnected", addr)
		}(conn.RemoteAddr())
	}
}
