package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"bustracker/internal/tracker"
)

type healthResponse struct {
	Status      string     `json:"status"`
	Generation  uint64     `json:"generation"`
	LastRefresh *time.Time `json:"lastRefresh,omitempty"`
	Buses       int        `json:"buses"`
	LastError   string     `json:"lastError,omitempty"`
	Pages       int        `json:"pages"`
	Parked      int        `json:"parkedSessions"`
}

type busesResponse struct {
	Generation uint64         `json:"generation"`
	FetchedAt  *time.Time     `json:"fetchedAt,omitempty"`
	Buses      []tracker.Unit `json:"buses"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newRouter(allowedOrigins []string, staticDir string, h *wsHub, p *poller, registry *tracker.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(withLogging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		res := p.lastResult()
		resp := healthResponse{
			Status:     "ok",
			Generation: res.Generation,
			Buses:      len(res.Records),
			Pages:      h.count(),
			Parked:     registry.Parked(),
		}
		if res.Generation > 0 {
			resp.LastRefresh = &res.FetchedAt
		}
		if res.Err != nil {
			resp.Status = "degraded"
			resp.LastError = res.Err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/api/buses", func(w http.ResponseWriter, r *http.Request) {
		res := p.lastResult()
		units := make([]tracker.Unit, 0, len(res.Records))
		for _, rec := range res.Records {
			units = append(units, tracker.Normalize(rec))
		}
		resp := busesResponse{Generation: res.Generation, Buses: units}
		if res.Generation > 0 {
			resp.FetchedAt = &res.FetchedAt
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/api/refresh", func(w http.ResponseWriter, r *http.Request) {
		status := "refreshing"
		if !p.trigger(context.WithoutCancel(r.Context())) {
			status = "already refreshing"
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": status})
	})

	r.Get("/ws", h.handleWebSocket)

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		h.ServeHTTP(w, r)
	})
}
