// Package api exposes a small local HTTP surface for inspection and control
// of the device fleet. It is unauthenticated and intended for the LAN only.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ayushsharma82/sternetd/internal/fleet"
	"github.com/ayushsharma82/sternetd/internal/ledger"
)

const defaultEventLimit = 100

// Server is the local control and inspection HTTP server.
type Server struct {
	addr       string
	fleet      *fleet.Manager
	ledger     *ledger.Ledger
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer creates the API server. rps bounds the accepted request rate
// across all endpoints; zero or negative disables limiting.
func NewServer(host string, port int, rps float64, mgr *fleet.Manager, ldg *ledger.Ledger) *Server {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		fleet:   mgr,
		ledger:  ldg,
		limiter: limiter,
	}
}

// handler builds the route table with the rate limiter applied.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /devices", s.handleListDevices)
	mux.HandleFunc("GET /devices/{id}", s.handleGetDevice)
	mux.HandleFunc("PUT /devices/{id}/state", s.handlePutState)
	mux.HandleFunc("GET /devices/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /events", s.handleGetEventsByType)
	return s.rateLimit(mux)
}

// Run starts the API server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.handler(),
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

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// deviceView is the JSON shape of one device in API responses.
type deviceView struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Address          string          `json:"address"`
	LinkState        string          `json:"link_state"`
	Responding       bool            `json:"responding"`
	On               bool            `json:"on"`
	Brightness       int             `json:"brightness"`
	ColorTemperature int             `json:"color_temperature"`
	Hostname         string          `json:"hostname,omitempty"`
	MAC              string          `json:"mac,omitempty"`
	Firmware         string          `json:"firmware,omitempty"`
}

func viewOf(dev *fleet.Device) deviceView {
	ctrl := dev.Controller
	ident := ctrl.Identity()
	desired := ctrl.Desired()

	v := deviceView{
		ID:               ctrl.Key(),
		Name:             ident.DisplayName,
		Address:          ident.Address,
		LinkState:        ctrl.LinkState().String(),
		Responding:       ctrl.Responding(),
		On:               desired.On,
		Brightness:       desired.Brightness,
		ColorTemperature: desired.ColorTemperature,
	}
	if st, ok := ctrl.Status(); ok {
		v.Hostname = st.Hostname
		v.MAC = st.MAC
		v.Firmware = st.FirmwareString()
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"devices": len(s.fleet.List()),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.fleet.List()
	out := make([]deviceView, 0, len(devices))
	for _, dev := range devices {
		out = append(out, viewOf(dev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.fleet.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(dev))
}

// stateUpdate carries a partial desired-state change. Absent fields are
// left untouched.
type stateUpdate struct {
	On               *bool `json:"on"`
	Brightness       *int  `json:"brightness"`
	ColorTemperature *int  `json:"color_temperature"`
}

func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.fleet.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}

	var upd stateUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if upd.On == nil && upd.Brightness == nil && upd.ColorTemperature == nil {
		writeError(w, http.StatusBadRequest, "empty state update")
		return
	}

	ctrl := dev.Controller
	if upd.On != nil {
		ctrl.SetPower(*upd.On)
	}
	if upd.Brightness != nil {
		ctrl.SetBrightness(*upd.Brightness)
	}
	if upd.ColorTemperature != nil {
		ctrl.SetColorTemperature(*upd.ColorTemperature)
	}

	log.Debug().
		Str("device", ctrl.Identity().DisplayName).
		Interface("update", upd).
		Msg("API state update")

	writeJSON(w, http.StatusOK, viewOf(dev))
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.fleet.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device")
		return
	}

	entries, err := s.ledger.GetByDevice(dev.Controller.Key(), defaultEventLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read event ledger")
		writeError(w, http.StatusInternalServerError, "ledger read failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetEventsByType returns recent events of one type across all devices.
func (s *Server) handleGetEventsByType(w http.ResponseWriter, r *http.Request) {
	eventType := ledger.EventType(r.URL.Query().Get("type"))
	switch eventType {
	case ledger.EventLinkOnline, ledger.EventLinkOffline, ledger.EventStatusReceived:
	default:
		writeError(w, http.StatusBadRequest, "type must be one of link_online, link_offline, status_received")
		return
	}

	entries, err := s.ledger.GetByType(eventType, defaultEventLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read event ledger")
		writeError(w, http.StatusInternalServerError, "ledger read failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode API response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
