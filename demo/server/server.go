package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/airladon/timekeeper/sim"
	"go.uber.org/zap"
)

// DefaultPoints is the profile resolution used when a request names none.
const DefaultPoints = 101

// Server exposes a simulation's controls and state over HTTP.
type Server struct {
	sim       *sim.Simulation
	mux       *http.ServeMux
	logger    *zap.Logger
	staticDir string
}

// New creates a server for s. If staticDir is empty no static files are
// served.
func New(s *sim.Simulation, staticDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{
		sim:       s,
		mux:       http.NewServeMux(),
		logger:    logger,
		staticDir: staticDir,
	}
	srv.registerRoutes()
	return srv
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/state", s.handleGetState)
	s.mux.HandleFunc("/api/pulse", s.post(s.pulse))
	s.mux.HandleFunc("/api/sine", s.post(s.sine))
	s.mux.HandleFunc("/api/stop", s.post(s.stop))
	s.mux.HandleFunc("/api/reset", s.post(s.reset))
	s.mux.HandleFunc("/api/speed", s.post(s.speed))
	s.mux.HandleFunc("/api/pause", s.post(s.pause))
	s.mux.HandleFunc("/api/unpause", s.post(s.unpause))
	s.mux.HandleFunc("/api/focus", s.post(s.focus))

	if s.staticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("serving", zap.String("addr", addr))
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleGetState returns the current simulation state.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	points := DefaultPoints
	if v := r.URL.Query().Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid points value", http.StatusBadRequest)
			return
		}
		points = n
	}

	s.writeJSON(w, http.StatusOK, s.sim.State(points))
}

// command applies a control and returns the response body.
type command func(q url.Values) (any, error)

// badRequest marks a command error caused by the request.
type badRequest struct{ error }

// post wraps a command as a POST-only handler.
func (s *Server) post(cmd command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := cmd(r.URL.Query())
		if err != nil {
			status := http.StatusInternalServerError
			var br badRequest
			if errors.As(err, &br) {
				status = http.StatusBadRequest
			}
			s.writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}

		s.logger.Debug("command", zap.String("path", r.URL.Path), zap.Any("query", r.URL.Query()))
		s.writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) pulse(q url.Values) (any, error) {
	amplitude, err := floatParam(q, "amplitude", 1)
	if err != nil {
		return nil, err
	}
	width, err := floatParam(q, "width", 0.2)
	if err != nil {
		return nil, err
	}
	if width <= 0 {
		return nil, badRequest{fmt.Errorf("width must be positive, got %v", width)}
	}

	s.sim.Pulse(amplitude, width)
	return map[string]any{"status": "pulse", "amplitude": amplitude, "width": width}, nil
}

func (s *Server) sine(q url.Values) (any, error) {
	amplitude, err := floatParam(q, "amplitude", 1)
	if err != nil {
		return nil, err
	}
	frequency, err := floatParam(q, "frequency", 1)
	if err != nil {
		return nil, err
	}

	if q.Get("inprogress") == "true" {
		s.sim.SineWaveInProgress(amplitude, frequency)
	} else {
		s.sim.SineWave(amplitude, frequency)
	}
	return map[string]any{"status": "sine", "amplitude": amplitude, "frequency": frequency}, nil
}

func (s *Server) stop(url.Values) (any, error) {
	s.sim.Stop()
	return map[string]string{"status": "stopped"}, nil
}

func (s *Server) reset(url.Values) (any, error) {
	s.sim.Reset()
	return map[string]string{"status": "reset"}, nil
}

func (s *Server) speed(q url.Values) (any, error) {
	if q.Get("value") == "" {
		return nil, badRequest{errors.New("missing speed value")}
	}
	speed, err := floatParam(q, "value", 0)
	if err != nil {
		return nil, err
	}
	if err := s.sim.SetSpeed(speed); err != nil {
		return nil, badRequest{err}
	}
	return map[string]float64{"speed": speed}, nil
}

func (s *Server) pause(url.Values) (any, error) {
	s.sim.Pause()
	return map[string]string{"status": "paused"}, nil
}

func (s *Server) unpause(url.Values) (any, error) {
	s.sim.Unpause()
	return map[string]string{"status": "unpaused"}, nil
}

func (s *Server) focus(q url.Values) (any, error) {
	focused, err := strconv.ParseBool(q.Get("value"))
	if err != nil {
		return nil, badRequest{fmt.Errorf("invalid focus value %q", q.Get("value"))}
	}
	s.sim.Focus(focused)
	return map[string]bool{"focused": focused}, nil
}

// floatParam parses an optional float query parameter.
func floatParam(q url.Values, name string, def float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, badRequest{fmt.Errorf("invalid %s value %q", name, v)}
	}
	return f, nil
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response", zap.Error(err))
	}
}
