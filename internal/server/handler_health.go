package server

import (
	"net/http"
	"runtime"
	"time"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

type healthResponse struct {
	Status      string     `json:"status"`
	Version     string     `json:"version"`
	GoVersion   string     `json:"go_version"`
	Uptime      string     `json:"uptime"`
	User        string     `json:"user"`
	Jobs        int        `json:"jobs"`
	RefreshedAt *time.Time `json:"queue_refreshed_at,omitempty"`
}

// handleHealth never calls squeue, so it stays cheap for probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		User:      s.env.User(),
	}
	if s.manifest != nil {
		resp.Jobs = len(s.manifest.Jobs())
	}
	s.mu.Lock()
	if t := s.env.RefreshedAt(); !t.IsZero() {
		resp.RefreshedAt = &t
	}
	s.mu.Unlock()

	respondOK(w, reqID, resp)
}
