package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "slurmjm API",
		Version:     "v1",
		Description: "Submit, inspect and cancel Slurm batch jobs declared in a manifest",
		Endpoints: []endpointInfo{
			{"/api/v1/jobs", []string{"GET"}, "Manifest jobs with derived status. Accepts ?status=, ?limit=, ?offset="},
			{"/api/v1/jobs/{name}", []string{"GET", "DELETE"}, "Single job status; DELETE cancels every queue record with that name"},
			{"/api/v1/jobs/{name}/queue", []string{"POST"}, "Queue a job. Accepts ?force=true to cancel and reset first"},
			{"/api/v1/queue", []string{"GET"}, "All squeue records for the configured user"},
			{"/api/v1/refresh", []string{"POST"}, "Re-read the queue from squeue"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/metrics", []string{"GET"}, "Prometheus metrics"},
		},
	})
}
