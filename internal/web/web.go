// Package web serves the local status endpoints: health, the current
// dashboard state as JSON and the last rendered frame.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"agiledash/internal/config"
	"agiledash/internal/convert"
	appLog "agiledash/internal/log"
	"agiledash/internal/model"
)

// Server exposes the state published by the main loop. It never fetches or
// renders on its own.
type Server struct {
	cfg    *config.Config
	router *mux.Router

	mu      sync.RWMutex
	state   *model.DashboardState
	frame   *image.RGBA
	png     []byte // encoded lazily from frame
	started time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:     cfg,
		router:  mux.NewRouter().StrictSlash(false),
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Publish replaces the state and frame served to clients. The state is
// copied so the caller keeps ownership of its value.
func (s *Server) Publish(state model.DashboardState, frame *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	if frame != nil {
		s.frame = frame
		s.png = nil
	}
}

// Handler returns the router wrapped with recovery, compression and the
// optional basic auth.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	h = handlers.CompressHandler(h)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health 는 항상 무인증으로 노출한다.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="AgileDash", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Start serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	s.router.HandleFunc("/preview.png", s.handlePreview).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// stateResponse is the JSON shape of /api/state.
type stateResponse struct {
	Now         time.Time  `json:"now"`
	Date        string     `json:"date,omitempty"`
	Slots       int        `json:"slots"`
	CurrentP    *float64   `json:"current_pence,omitempty"`
	MinP        *float64   `json:"min_pence,omitempty"`
	MaxP        *float64   `json:"max_pence,omitempty"`
	GasP        *float64   `json:"gas_pence,omitempty"`
	HasTomorrow bool       `json:"has_tomorrow"`
	TomorrowMax *float64   `json:"tomorrow_max_pence,omitempty"`
	TomorrowGas *float64   `json:"tomorrow_gas_pence,omitempty"`
	Weather     *weatherVM `json:"weather,omitempty"`
	Alert       bool       `json:"alert"`
	Message     string     `json:"message,omitempty"`
	LastFetch   time.Time  `json:"last_fetch"`
	LastRender  time.Time  `json:"last_render"`
	Uptime      string     `json:"uptime"`
}

type weatherVM struct {
	TemperatureC  float64   `json:"temperature_c"`
	ConditionCode int       `json:"condition_code"`
	FetchedAt     time.Time `json:"fetched_at"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()

	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "no state published yet")
		return
	}
	writeJSON(w, http.StatusOK, s.buildStateResponse(*st))
}

func (s *Server) buildStateResponse(st model.DashboardState) stateResponse {
	resp := stateResponse{
		Now:         st.Now,
		HasTomorrow: st.HasTomorrow(),
		Alert:       st.Alert,
		Message:     st.Message,
		LastFetch:   st.LastFetch,
		LastRender:  st.LastRender,
		Uptime:      time.Since(s.started).Truncate(time.Second).String(),
	}
	if st.Today != nil {
		resp.Date = st.Today.Date
		resp.Slots = len(st.Today.Electricity)
	}
	if r, ok := st.Today.RateAt(st.Now); ok {
		resp.CurrentP = ptr(r.PricePence)
	}
	if lo, hi, ok := st.Today.MinMax(); ok {
		resp.MinP, resp.MaxP = ptr(lo), ptr(hi)
	}
	if g, ok := st.Today.GasPrice(); ok {
		resp.GasP = ptr(g)
	}
	if _, hi, ok := st.Tomorrow.MinMax(); ok {
		resp.TomorrowMax = ptr(hi)
	}
	if g, ok := st.Tomorrow.GasPrice(); ok {
		resp.TomorrowGas = ptr(g)
	}
	if st.Weather != nil {
		resp.Weather = &weatherVM{
			TemperatureC:  st.Weather.TemperatureC,
			ConditionCode: st.Weather.ConditionCode,
			FetchedAt:     st.Weather.FetchedAt,
		}
	}
	return resp
}

// handlePreview serves the last presented frame as PNG.
func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	data, err := s.previewPNG()
	if err != nil {
		appLog.Error("preview encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to encode preview")
		return
	}
	if data == nil {
		writeError(w, http.StatusNotFound, "no frame rendered yet")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) previewPNG() ([]byte, error) {
	s.mu.RLock()
	data, frame := s.png, s.frame
	s.mu.RUnlock()
	if data != nil || frame == nil {
		return data, nil
	}

	data, err := convert.EncodePNG(frame)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.frame == frame {
		s.png = data
	}
	s.mu.Unlock()
	return data, nil
}

func ptr(v float64) *float64 { return &v }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
