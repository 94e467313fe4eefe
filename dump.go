package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/callebjorkell/nfc-bridge/bridge"
	"github.com/callebjorkell/nfc-bridge/config"
	"github.com/callebjorkell/nfc-bridge/nfc"
	log "github.com/sirupsen/logrus"
)

func dumpTag(ctx context.Context, cfg *config.Config) {
	ev, err := readSingleTag(ctx, cfg.Reader)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Tag %v (%v)\n", ev.TagID, ev.Action)
	if *dumpRaw {
		fmt.Print(hex.Dump(ev.Data))
	}

	msgs, err := bridge.NDEFDecoder{}.Decode(ev)
	if err != nil {
		log.Error(err)
		return
	}
	if len(msgs) == 0 {
		fmt.Println("No NDEF messages on the tag...")
		return
	}

	fmt.Println("  Msg │ Rec │ Record")
	fmt.Println("──────┼─────┼────────────────────────────────────────")
	for i, m := range msgs {
		for j, r := range m.Records {
			fmt.Printf("%5v │ %3v │ %v\n", i, j, r)
		}
	}
}

func readSingleTag(ctx context.Context, cfg nfc.ReaderConfig) (nfc.DiscoveryEvent, error) {
	reader, err := nfc.Open(cfg)
	if err != nil {
		return nfc.DiscoveryEvent{}, err
	}
	defer reader.Close()

	if err := reader.EnableForegroundReceive([]nfc.Action{nfc.NDEFDiscovered, nfc.TagDiscovered}); err != nil {
		return nfc.DiscoveryEvent{}, err
	}
	defer reader.DisableForegroundReceive()

	log.Println("Waiting for a tag...")
	select {
	case <-ctx.Done():
		return nfc.DiscoveryEvent{}, ctx.Err()
	case ev, ok := <-reader.Events():
		if !ok {
			return nfc.DiscoveryEvent{}, fmt.Errorf("reader stopped before a tag was read")
		}
		return ev, nil
	}
}
