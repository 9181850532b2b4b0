// Package api exposes the engine over a local HTTP surface. All
// endpoints speak JSON; reads come from the scheduler's published
// snapshots and never block on collection or model calls.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"

	"github.com/attune-sh/attune/internal/category"
	"github.com/attune-sh/attune/internal/scheduler"
	"github.com/attune-sh/attune/internal/storage"
	"github.com/attune-sh/attune/internal/summarize"
)

// Scheduler is the engine surface the API consumes.
type Scheduler interface {
	GetCurrentState() *summarize.Summary
	GetDailyState() *summarize.Summary
	CurrentMode() scheduler.Mode
	SetMode(mode scheduler.Mode) error
	RequestCycleNow(ctx context.Context, mode scheduler.Mode) (summarize.Summary, error)
}

// Pinger reports whether an upstream dependency answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP handlers to their backing components.
type Server struct {
	engine     Scheduler
	categories *category.Store
	history    *storage.Store
	tracker    Pinger
	llm        Pinger
}

// NewServer builds a Server. tracker and llm may be nil; health then
// reports them as unchecked.
func NewServer(engine Scheduler, categories *category.Store, history *storage.Store, tracker, llm Pinger) *Server {
	return &Server{
		engine:     engine,
		categories: categories,
		history:    history,
		tracker:    tracker,
		llm:        llm,
	}
}

// Handler returns the routed handler with CORS applied, so a local
// dashboard served from another origin can talk to the daemon.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/cycle", s.handleCycle)
	mux.HandleFunc("POST /api/mode", s.handleSetMode)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleUpdateCategory)
	mux.HandleFunc("PUT /api/categories/bulk", s.handleBulkCategories)
	mux.HandleFunc("GET /api/summaries", s.handleSummaries)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

// stateResponse is the non-blocking read of what the engine last
// published.
type stateResponse struct {
	Mode    string             `json:"mode"`
	Current *summarize.Summary `json:"current,omitempty"`
	Daily   *summarize.Summary `json:"daily,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Mode:    string(s.engine.CurrentMode()),
		Current: s.engine.GetCurrentState(),
		Daily:   s.engine.GetDailyState(),
	})
}

type cycleRequest struct {
	Mode string `json:"mode"`
}

// handleCycle runs one analysis cycle synchronously and returns its
// summary. If a cycle is already in flight the request waits for that
// one rather than starting a second.
func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	var req cycleRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	mode := scheduler.Mode("")
	if req.Mode != "" {
		m, err := scheduler.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}

	sum, err := s.engine.RequestCycleNow(r.Context(), mode)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := scheduler.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetMode(mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(mode)})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.categories.All())
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var c category.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.categories.Update(c); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleBulkCategories applies a batch atomically: one invalid entry
// rejects the whole request and leaves the store untouched.
func (s *Server) handleBulkCategories(w http.ResponseWriter, r *http.Request) {
	var list []category.Category
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.categories.BulkUpdate(list); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": len(list)})
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.history.RecentSummaries(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// healthResponse reports upstream reachability. The daemon itself is
// healthy as long as it answers; degraded upstreams are informational.
type healthResponse struct {
	Status  string `json:"status"`
	Tracker string `json:"tracker"`
	LLM     string `json:"llm"`
	Mode    string `json:"mode"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:  "ok",
		Tracker: pingStatus(ctx, s.tracker),
		LLM:     pingStatus(ctx, s.llm),
		Mode:    string(s.engine.CurrentMode()),
	}
	writeJSON(w, http.StatusOK, resp)
}

func pingStatus(ctx context.Context, p Pinger) string {
	if p == nil {
		return "unchecked"
	}
	if err := p.Ping(ctx); err != nil {
		return "unavailable"
	}
	return "ok"
}

// writeStoreError maps category-store failures: validation problems
// are the client's fault, anything else is ours.
func writeStoreError(w http.ResponseWriter, err error) {
	var verr *category.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
