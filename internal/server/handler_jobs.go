package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/me/slurmjm/internal/environment"
	"github.com/me/slurmjm/internal/scriptjob"
	"github.com/me/slurmjm/pkg/model"
)

// jobView combines a manifest job with its queue record.
// The caller must hold s.mu.
func (s *Server) jobView(r *http.Request, j *scriptjob.ScriptJob) (model.JobView, error) {
	status, err := s.env.Status(r.Context(), j)
	if err != nil {
		return model.JobView{}, err
	}
	v := model.JobView{
		Name:      j.Name(),
		Status:    status,
		Workdir:   j.Workdir(),
		DependsOn: j.DependsOn(),
		Outputs:   j.Outputs(),
	}
	if rec, ok := s.env.Record(j.Name()); ok {
		v.JobID = rec.JobID
		v.State = rec.RawState
		v.Partition = rec.Partition
		v.Elapsed = rec.Elapsed
		v.TimeLimit = rec.TimeLimit
		v.Reason = rec.Reason
	}
	return v, nil
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*scriptjob.ScriptJob, bool) {
	name := chi.URLParam(r, "name")
	var j *scriptjob.ScriptJob
	ok := false
	if s.manifest != nil {
		j, ok = s.manifest.Get(name)
	}
	if !ok {
		respondError(w, RequestIDFromContext(r.Context()), http.StatusNotFound, model.NewNotFoundError("job", name))
	}
	return j, ok
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	opts.Status = model.JobStatus(strings.ToUpper(r.URL.Query().Get("status")))
	opts.Clamp()

	var jobs []*scriptjob.ScriptJob
	if s.manifest != nil {
		jobs = s.manifest.Jobs()
	}

	s.mu.Lock()
	views := make([]model.JobView, 0, len(jobs))
	for _, j := range jobs {
		v, err := s.jobView(r, j)
		if err != nil {
			s.mu.Unlock()
			s.respondErr(w, reqID, err)
			return
		}
		if opts.Status == "" || v.Status == opts.Status {
			views = append(views, v)
		}
	}
	s.mu.Unlock()

	start, end, pg := opts.Page(len(views))
	respondList(w, reqID, views[start:end], pg)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	v, err := s.jobView(r, j)
	s.mu.Unlock()
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, v)
}

// handleCancelJob cancels every queue record with the given name. The name
// does not have to belong to the manifest.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	n, err := s.env.CancelByName(r.Context(), name)
	s.mu.Unlock()
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"name": name, "cancelled": n})
}

func (s *Server) handleQueueJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	var opts []environment.QueueOption
	if force, _ := strconv.ParseBool(r.URL.Query().Get("force")); force {
		opts = append(opts, environment.WithForce())
	}

	s.mu.Lock()
	res, err := s.env.Queue(r.Context(), j, opts...)
	s.mu.Unlock()
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}

	data := map[string]any{"name": j.Name(), "outcome": res.Outcome.String(), "job_id": res.JobID}
	if res.Outcome == environment.OutcomeSubmitted {
		respondCreated(w, reqID, data)
		return
	}
	respondOK(w, reqID, data)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	s.mu.Lock()
	err := s.env.Refresh(r.Context())
	refreshedAt := s.env.RefreshedAt()
	s.mu.Unlock()
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"refreshed_at": refreshedAt})
}

// handleQueueRecords returns every squeue record for the user, including
// jobs that are not part of the manifest.
func (s *Server) handleQueueRecords(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	s.mu.Lock()
	records, err := s.env.JobsInfo(r.Context())
	s.mu.Unlock()
	if err != nil {
		s.respondErr(w, reqID, err)
		return
	}
	if records == nil {
		records = []model.QueueRecord{}
	}
	respondOK(w, reqID, records)
}
