package nfc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/buntdb"
)

// ErrNoState is returned when no state has been saved for a surface.
var ErrNoState = errors.New("no saved state")

const surfacePrefix = "surface:"

// SurfaceState is what survives a restart of a surface: whether the event it was associated with
// still needs handling. The remaining fields are informational.
type SurfaceState struct {
	Surface string    `json:"surface"`
	Pending bool      `json:"pending"`
	Session string    `json:"session,omitempty"`
	SavedAt time.Time `json:"savedAt"`
}

type DB struct {
	instance *buntdb.DB
}

// NewDB opens the state database at path. ":memory:" gives a database that is never written to disk.
func NewDB(path string) (*DB, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &DB{instance: db}, nil
}

func (db *DB) Close() error {
	return db.instance.Close()
}

func (db *DB) StoreState(s SurfaceState) error {
	return db.instance.Update(func(tx *buntdb.Tx) error {
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		if _, _, err := tx.Set(getSurfaceKey(s.Surface), string(data), nil); err != nil {
			return err
		}
		return nil
	})
}

func (db *DB) ReadState(surface string) (SurfaceState, error) {
	var s SurfaceState
	err := db.instance.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(getSurfaceKey(surface))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(v), &s)
	})
	if err == buntdb.ErrNotFound {
		return s, ErrNoState
	}
	return s, err
}

func (db *DB) DeleteState(surface string) error {
	err := db.instance.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(getSurfaceKey(surface))
		return err
	})
	if err == buntdb.ErrNotFound {
		return ErrNoState
	}
	return err
}

func (db *DB) ReadAll() ([]SurfaceState, error) {
	var states []SurfaceState
	err := db.instance.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(surfacePrefix+"*", func(key, value string) bool {
			var s SurfaceState
			if err := json.Unmarshal([]byte(value), &s); err != nil {
				s = SurfaceState{Surface: strings.TrimPrefix(key, surfacePrefix)}
			}
			states = append(states, s)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("could not list states: %w", err)
	}
	return states, nil
}

func getSurfaceKey(surface string) string {
	return surfacePrefix + surface
}
