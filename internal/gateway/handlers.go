package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"trendfilter/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    1024,
	WriteBufferSize:   4096,
	EnableCompression: true,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

// SetCORS sets permissive CORS headers on the response.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrConfig), errors.Is(err, model.ErrData):
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// Server exposes the filter service over HTTP and WebSocket.
type Server struct {
	addr string
	srv  *http.Server

	svc *Service
	hub *Hub
}

// NewServer wires the service into an HTTP server. Hub callbacks feed
// the service metrics when they are configured.
func NewServer(addr string, svc *Service) *Server {
	s := &Server{
		addr: addr,
		svc:  svc,
		hub:  NewHub(),
	}
	if svc.Metrics != nil {
		m := svc.Metrics
		s.hub.OnClientCount = func(n int) { m.WSClients.Set(float64(n)) }
		s.hub.OnRecordSent = func() { m.RecordsStreamed.Inc() }
		s.hub.OnDrop = func() { m.ReplayDrops.Inc() }
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/records", s.handleGetRunRecords)
	mux.HandleFunc("GET /api/profiles", s.handleProfiles)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws/runs/{id}", s.handleReplay)
	mux.HandleFunc("OPTIONS /api/", s.handlePreflight)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Hub returns the replay hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("gateway listening")
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("gateway server")
		}
	}()
}

// Stop gracefully shuts down the gateway.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request body: " + err.Error()})
		return
	}
	sum, records, err := s.svc.Run(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"summary": sum,
		"records": len(records),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	runs, err := s.svc.ListRuns(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	sum, params, err := s.svc.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": sum,
		"params":  params,
	})
}

func (s *Server) handleGetRunRecords(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	runID := r.PathValue("id")
	// An unknown run is a 404, not an empty record list.
	if _, _, err := s.svc.GetRun(r.Context(), runID); err != nil {
		writeError(w, err)
		return
	}
	records, err := s.svc.GetRunRecords(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  runID,
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	writeJSON(w, http.StatusOK, s.svc.ProfileParams())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		s.svc.Health.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReplay upgrades the connection and hands it to the hub. Lookup
// failures are reported over plain HTTP before the upgrade.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	sum, _, err := s.svc.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := s.svc.GetRunRecords(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("ws upgrade failed")
		return
	}
	s.hub.ServeRun(conn, sum, records)
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.WriteHeader(http.StatusNoContent)
}
