package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/callebjorkell/nfc-bridge/bridge"
	"github.com/callebjorkell/nfc-bridge/channel"
	"github.com/callebjorkell/nfc-bridge/config"
	"github.com/callebjorkell/nfc-bridge/control"
	"github.com/callebjorkell/nfc-bridge/nfc"
	"github.com/callebjorkell/nfc-bridge/ui"
	log "github.com/sirupsen/logrus"
)

func startServer(ctx context.Context, cfg *config.Config) {
	applyOverrides(cfg)
	if err := runServer(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

// runServer runs the bridge until ctx is cancelled or the consumer transport fails. The host is
// stopped before it returns either way.
func runServer(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	codec, err := channel.CodecByName(cfg.Transport.Codec)
	if err != nil {
		return err
	}

	db, err := nfc.NewDB(cfg.StateDB)
	if err != nil {
		return fmt.Errorf("could not open state database: %w", err)
	}
	defer db.Close()

	adapter, err := nfc.Open(cfg.Reader)
	if err != nil {
		if !errors.Is(err, nfc.ErrUnavailable) {
			return err
		}
		log.Warnf("Continuing without NFC: %v", err)
		adapter = nil
	} else {
		defer adapter.Close()
	}

	var indicator bridge.Indicator
	if led, err := ui.GetColorLED(cfg.UI.RedPin, cfg.UI.GreenPin, cfg.UI.BluePin); err != nil {
		log.Warnf("No status light: %v", err)
	} else {
		indicator = ui.NewStatusLight(led)
	}

	host := bridge.NewHost(bridge.HostConfig{
		Surface:        cfg.Surface,
		AutoForeground: cfg.AutoForeground,
		ReaderSettings: cfg.Reader.Settings(),
	}, adapter, bridge.NDEFDecoder{}, db, indicator)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hostDone := make(chan struct{})
	go func() {
		defer close(hostDone)
		host.Run(ctx)
	}()
	defer func() {
		cancel()
		<-hostDone
	}()

	if cfg.Control.Address != "" {
		go func() {
			if err := control.Serve(ctx, cfg.Control.Address, host); err != nil {
				log.Errorf("Control API stopped: %v", err)
			}
		}()
	}

	if cfg.UI.SwitchPin != "" {
		switches, err := ui.InitSwitch(cfg.UI.SwitchPin)
		if err != nil {
			log.Warnf("No receive switch: %v", err)
		} else {
			go followSwitch(ctx, host, switches)
		}
	}

	if err := serveConsumer(ctx, cfg, codec, host); err != nil {
		return fmt.Errorf("consumer transport failed: %w", err)
	}
	return nil
}

func applyOverrides(cfg *config.Config) {
	if *startTransport != "" {
		cfg.Transport.Kind = *startTransport
	}
	if *startAddress != "" {
		cfg.Transport.Address = *startAddress
	}
	if *startCodec != "" {
		cfg.Transport.Codec = *startCodec
	}
	if *startForeground {
		cfg.AutoForeground = true
	}
}

func serveConsumer(ctx context.Context, cfg *config.Config, codec channel.Codec, host *bridge.Host) error {
	switch cfg.Transport.Kind {
	case config.TransportMQTT:
		m, err := channel.DialMQTT(cfg.Transport.MQTT, codec)
		if err != nil {
			return err
		}
		h, err := host.Bind(m)
		if err != nil {
			return err
		}
		defer host.Unbind(m)
		return m.Serve(ctx, h)
	default:
		if cfg.Transport.Network == "unix" {
			os.Remove(cfg.Transport.Address)
		}
		ln, err := net.Listen(cfg.Transport.Network, cfg.Transport.Address)
		if err != nil {
			return err
		}
		log.Infof("Waiting for a consumer on %v %v (%v)", cfg.Transport.Network, ln.Addr(), codec.Name())
		return channel.ServeListener(ctx, ln, codec, host)
	}
}

// followSwitch moves the surface in and out of the foreground with the receive switch.
func followSwitch(ctx context.Context, host *bridge.Host, switches <-chan ui.SwitchEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-switches:
			var err error
			if ev.On {
				err = host.EnterForeground()
			} else {
				err = host.ExitForeground()
			}
			if err != nil {
				log.Warnf("Receive switch ignored: %v", err)
			}
		}
	}
}
