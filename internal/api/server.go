// Package api exposes the coordinator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ceilingd/internal/ceiling"
	"github.com/dokzlo13/ceilingd/internal/device"
	"github.com/dokzlo13/ceilingd/internal/executor"
	"github.com/dokzlo13/ceilingd/internal/ledger"
	"github.com/dokzlo13/ceilingd/internal/zones"
)

const maxBodySize = 64 << 10

// Controller is the part of the coordinator the API drives.
type Controller interface {
	Devices() []*device.Ceiling
	ReadState(ctx context.Context, serial string) (ceiling.Reading, error)
	HandleTurnOn(ctx context.Context, serial string, l ceiling.Light, req ceiling.Request) error
	TurnOff(ctx context.Context, serial string, l ceiling.Light, transition time.Duration) error
	SetState(ctx context.Context, serial string, req ceiling.SetStateRequest) error
}

// History lists past commands of a device.
type History interface {
	BySerial(serial string, limit int) ([]*ledger.Entry, error)
}

// Server is the HTTP control API.
type Server struct {
	addr       string
	ctrl       Controller
	history    History
	httpServer *http.Server
}

// NewServer creates a server. history may be nil.
func NewServer(host string, port int, ctrl Controller, history History) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		ctrl:    ctrl,
		history: history,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /devices", s.handleList)
	mux.HandleFunc("GET /devices/{serial}", s.handleGet)
	mux.HandleFunc("GET /devices/{serial}/history", s.handleHistory)
	mux.HandleFunc("POST /devices/{serial}/{light}/turn_on", s.handleTurnOn)
	mux.HandleFunc("POST /devices/{serial}/{light}/turn_off", s.handleTurnOff)
	mux.HandleFunc("POST /devices/{serial}/state", s.handleSetState)
	return withRequestID(mux)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type deviceSummary struct {
	Serial    string `json:"serial"`
	Addr      string `json:"addr"`
	ProductID uint32 `json:"product_id"`
	Model     string `json:"model"`
	Zones     int    `json:"zones"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	devices := s.ctrl.Devices()
	sort.Slice(devices, func(i, j int) bool { return devices[i].Serial < devices[j].Serial })

	out := make([]deviceSummary, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceSummary{
			Serial:    d.Serial,
			Addr:      d.Addr,
			ProductID: d.ProductID,
			Model:     d.Model(),
			Zones:     d.Caps.TotalZones,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	reading, err := s.ctrl.ReadState(r.Context(), r.PathValue("serial"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []*ledger.Entry{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, badRequest(fmt.Errorf("invalid limit %q", v)))
			return
		}
		limit = n
	}

	entries, err := s.history.BySerial(r.PathValue("serial"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleTurnOn(w http.ResponseWriter, r *http.Request) {
	l, body, ok := s.lightAndBody(w, r)
	if !ok {
		return
	}
	req, err := parseTurnOn(body)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	if err := s.ctrl.HandleTurnOn(r.Context(), r.PathValue("serial"), l, req); err != nil {
		writeError(w, r, err)
		return
	}
	writeStatus(w)
}

func (s *Server) handleTurnOff(w http.ResponseWriter, r *http.Request) {
	l, body, ok := s.lightAndBody(w, r)
	if !ok {
		return
	}
	transition, err := parseTransitionOnly(body)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	if err := s.ctrl.TurnOff(r.Context(), r.PathValue("serial"), l, transition); err != nil {
		writeError(w, r, err)
		return
	}
	writeStatus(w)
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	req, err := parseSetState(body)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	if err := s.ctrl.SetState(r.Context(), r.PathValue("serial"), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeStatus(w)
}

func (s *Server) lightAndBody(w http.ResponseWriter, r *http.Request) (ceiling.Light, []byte, bool) {
	l, err := ceiling.ParseLight(r.PathValue("light"))
	if err != nil {
		writeError(w, r, notFound(err))
		return 0, nil, false
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, badRequest(err))
		return 0, nil, false
	}
	return l, body, true
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error { return &statusError{code: http.StatusBadRequest, err: err} }
func notFound(err error) error   { return &statusError{code: http.StatusNotFound, err: err} }

func statusOf(err error) int {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return se.code
	case errors.Is(err, ceiling.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, executor.ErrCommandTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, zones.ErrInvalidLength):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	ev := log.Warn()
	if code >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).
		Str("request_id", w.Header().Get(requestIDHeader)).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", code).
		Msg("Request failed")

	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeStatus(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

const requestIDHeader = "X-Request-ID"

// withRequestID tags every request with an id, reusing the caller's if set.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)

		log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("Handled request")
	})
}
