package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestListOptions_Clamp(t *testing.T) {
	tests := []struct {
		name       string
		input      ListOptions
		wantLimit  int
		wantOffset int
	}{
		{"defaults", ListOptions{Limit: 0, Offset: 0}, 50, 0},
		{"negative limit", ListOptions{Limit: -5, Offset: 0}, 50, 0},
		{"over max", ListOptions{Limit: 900, Offset: 0}, 500, 0},
		{"negative offset", ListOptions{Limit: 10, Offset: -3}, 10, 0},
		{"valid", ListOptions{Limit: 25, Offset: 10}, 25, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.Clamp()
			if tt.input.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.input.Limit, tt.wantLimit)
			}
			if tt.input.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", tt.input.Offset, tt.wantOffset)
			}
		})
	}
}

func TestListOptions_Page(t *testing.T) {
	tests := []struct {
		opts     ListOptions
		n        int
		start    int
		end      int
		wantMore bool
	}{
		{ListOptions{Limit: 2, Offset: 0}, 5, 0, 2, true},
		{ListOptions{Limit: 2, Offset: 4}, 5, 4, 5, false},
		{ListOptions{Limit: 10, Offset: 0}, 3, 0, 3, false},
		{ListOptions{Limit: 10, Offset: 7}, 3, 3, 3, false},
	}
	for _, tt := range tests {
		start, end, pg := tt.opts.Page(tt.n)
		if start != tt.start || end != tt.end || pg.HasMore != tt.wantMore || pg.Total != tt.n {
			t.Errorf("%+v.Page(%d) = %d, %d, %+v", tt.opts, tt.n, start, end, pg)
		}
	}
}

func TestAPIError(t *testing.T) {
	err := NewNotFoundError("job", "align")
	if got, want := err.Error(), `NOT_FOUND: job "align" not found`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"conflict", fmt.Errorf("queue x: %w", ErrJobBlocked), ErrConflict},
		{"external", &ExternalCommandError{Command: "squeue", ExitCode: 1}, ErrExternalCommand},
		{"api error", NewNotFoundError("job", "x"), ErrNotFound},
		{"plain", errors.New("boom"), ErrInternal},
	}
	for _, tt := range tests {
		if got := ToAPIError(tt.err); got.Code != tt.want {
			t.Errorf("%s: Code = %s, want %s", tt.name, got.Code, tt.want)
		}
	}
}
