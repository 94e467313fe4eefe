package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/callebjorkell/nfc-bridge/channel"
	"github.com/callebjorkell/nfc-bridge/config"
	log "github.com/sirupsen/logrus"
)

// consumerEnd is a transport seen from the consumer side.
type consumerEnd interface {
	channel.Invoker
	Serve(ctx context.Context, h channel.Handler) error
}

func listenAsConsumer(ctx context.Context, cfg *config.Config) {
	codec, err := channel.CodecByName(cfg.Transport.Codec)
	if err != nil {
		log.Fatal(err)
	}

	var end consumerEnd
	switch cfg.Transport.Kind {
	case config.TransportMQTT:
		m, err := channel.DialMQTT(cfg.Transport.MQTT.AsConsumer(), codec)
		if err != nil {
			log.Fatal(err)
		}
		end = m
	default:
		conn, err := net.Dial(cfg.Transport.Network, cfg.Transport.Address)
		if err != nil {
			log.Fatalf("Could not reach the bridge: %v", err)
		}
		st := channel.NewStream(conn, codec)
		defer st.Close()
		end = st
	}

	served := make(chan error, 1)
	go func() { served <- end.Serve(ctx, channel.HandlerFunc(consume)) }()

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	r, err := end.InvokeMethod(callCtx, "configure", nil)
	cancel()
	if err != nil {
		log.Fatalf("Could not configure: %v", err)
	}
	if r.Status != channel.StatusSuccess {
		log.Fatalf("Bridge refused configuration: %v", r)
	}
	log.Infof("Configured: %v", r.Value)

	select {
	case <-ctx.Done():
	case err := <-served:
		if err != nil {
			log.Error(err)
		}
		log.Infoln("Bridge went away")
	}
}

func consume(ctx context.Context, call channel.MethodCall) channel.Result {
	switch call.Method {
	case "onMessage":
		fmt.Println(call.Args)
		if *listenReject {
			return channel.Error("rejected", "Payload rejected by the listener.", nil)
		}
		return channel.Success(nil)
	case "setNfcEnabled":
		log.Infof("NFC enabled: %v", call.Args)
		return channel.Success(nil)
	default:
		return channel.NotImplemented()
	}
}
