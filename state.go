package main

import (
	"fmt"

	"github.com/callebjorkell/nfc-bridge/config"
	"github.com/callebjorkell/nfc-bridge/nfc"
	log "github.com/sirupsen/logrus"
)

func listStates(cfg *config.Config) {
	db, err := nfc.NewDB(cfg.StateDB)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	states, err := db.ReadAll()
	if err != nil {
		log.Fatal(err)
	}

	if len(states) > 0 {
		fmt.Println("           Surface │ Pending │ Saved                     │ Session")
		fmt.Println("───────────────────┼─────────┼───────────────────────────┼─────────────────────────────────────")
	} else {
		fmt.Println("No surface states found in the database...")
	}
	for _, s := range states {
		surface := s.Surface
		if len(surface) > 18 {
			surface = fmt.Sprintf("%.17v…", surface)
		}
		fmt.Printf("%18v │ %7v │ %25v │ %v\n", surface, s.Pending, s.SavedAt.Format("2006-01-02 15:04:05 MST"), s.Session)
	}
}

func clearState(cfg *config.Config) {
	db, err := nfc.NewDB(cfg.StateDB)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.DeleteState(cfg.Surface); err != nil {
		log.Warnf("Could not remove state of %v: %v", cfg.Surface, err.Error())
		return
	}
	log.Infof("State of %v removed", cfg.Surface)
}
