// Package control exposes the surface lifecycle over HTTP so that whatever plays the role of the
// surface (a kiosk, a door controller, a person with curl) can move it in and out of the foreground.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/callebjorkell/nfc-bridge/bridge"
	"github.com/callebjorkell/nfc-bridge/nfc"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Surface is the part of the host the API drives.
type Surface interface {
	Status() (bridge.Status, error)
	EnterForeground() error
	ExitForeground() error
	Discover(ev nfc.DiscoveryEvent) error
}

// EventRequest injects a discovery event. Data is the base64 encoded tag memory.
type EventRequest struct {
	Action string `json:"action"`
	TagID  string `json:"tagId"`
	Data   []byte `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter serves the API for s. Requests beyond 20 per second, with bursts of 40, are turned
// away, whether or not they match a route.
func NewRouter(s Surface) http.Handler {
	return newRouter(s, rate.NewLimiter(rate.Limit(20), 40))
}

func newRouter(s Surface, limiter *rate.Limiter) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc("/status", statusHandler(s)).Methods("GET")
	r.HandleFunc("/surface/foreground", foregroundHandler(s.EnterForeground)).Methods("PUT")
	r.HandleFunc("/surface/foreground", foregroundHandler(s.ExitForeground)).Methods("DELETE")
	r.HandleFunc("/surface/events", eventHandler(s)).Methods("POST")
	return limit(limiter)(r)
}

// Serve runs the API on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, s Surface) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(s),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("Control API listening on %v", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func limit(l *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{"too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func statusHandler(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.Status()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func foregroundHandler(transition func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := transition(); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func eventHandler(s Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{fmt.Sprintf("invalid event: %v", err)})
			return
		}
		action, err := nfc.ParseAction(req.Action)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
			return
		}

		ev := nfc.DiscoveryEvent{Action: action, TagID: req.TagID, Data: req.Data, Time: time.Now()}
		if err := s.Discover(ev); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, bridge.ErrNotBound), errors.Is(err, bridge.ErrNotReceiving):
		code = http.StatusConflict
	case errors.Is(err, bridge.ErrStopped):
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, errorResponse{err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("Could not write response: %v", err)
	}
}
