package model

import (
	"errors"
	"fmt"
	"time"
)

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list queries with pagination and filtering.
type ListOptions struct {
	Limit  int
	Offset int
	Status JobStatus // optional status filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 50, Offset: 0}
}

// Clamp enforces limits (max 500, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// Page returns the window [Offset, Offset+Limit) of a list of n items and
// the matching pagination metadata.
func (o ListOptions) Page(n int) (start, end int, pg *Pagination) {
	start = min(o.Offset, n)
	end = min(start+o.Limit, n)
	return start, end, &Pagination{Total: n, Limit: o.Limit, Offset: o.Offset, HasMore: end < n}
}

// Additional API error codes that have no counterpart in ErrorKind.
const (
	ErrNotFound ErrorKind = "NOT_FOUND"
	ErrInternal ErrorKind = "INTERNAL_ERROR"
)

// APIError is the error body of an API response.
type APIError struct {
	Code    ErrorKind `json:"code"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewNotFoundError creates a NOT_FOUND API error.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{Code: ErrNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// ToAPIError converts err to an API error, keeping its kind when it has one.
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	kind := KindOf(err)
	if kind == "" {
		kind = ErrInternal
	}
	return &APIError{Code: kind, Message: err.Error()}
}

// JobView is the API representation of a managed job and its queue record.
type JobView struct {
	Name      string    `json:"name"`
	Status    JobStatus `json:"status"`
	JobID     string    `json:"job_id,omitempty"`
	State     string    `json:"queue_state,omitempty"`
	Partition string    `json:"partition,omitempty"`
	Elapsed   string    `json:"elapsed,omitempty"`
	TimeLimit string    `json:"time_limit,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Workdir   string    `json:"workdir,omitempty"`
	DependsOn []string  `json:"depends_on,omitempty"`
	Outputs   []string  `json:"outputs,omitempty"`
}
