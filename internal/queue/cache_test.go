package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/me/slurmjm/pkg/model"
)

type fakeQuerier struct {
	records []model.QueueRecord
	err     error
	users   []string
}

func (f *fakeQuerier) Query(_ context.Context, user string) ([]model.QueueRecord, error) {
	f.users = append(f.users, user)
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.QueueRecord(nil), f.records...), nil
}

func newTestCache(q Querier) *Cache {
	return NewCache(q, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func rec(id, name string, state model.QueueState) model.QueueRecord {
	return model.QueueRecord{JobID: id, Name: name, State: state}
}

func TestCache_EmptyUntilRefresh(t *testing.T) {
	q := &fakeQuerier{records: []model.QueueRecord{rec("1", "a", model.QueueStateRunning)}}
	c := newTestCache(q)

	if c.Populated() {
		t.Error("new cache reports populated")
	}
	if _, ok := c.Lookup("a"); ok {
		t.Error("Lookup on empty cache found a record")
	}
	if len(q.users) != 0 {
		t.Errorf("Lookup triggered %d queries", len(q.users))
	}

	if err := c.Refresh(context.Background(), "alice"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !c.Populated() || c.RefreshedAt().IsZero() {
		t.Error("cache not populated after refresh")
	}
	got, ok := c.Lookup("a")
	if !ok || got.JobID != "1" {
		t.Errorf("Lookup(a) = %+v, %v", got, ok)
	}
	if q.users[0] != "alice" {
		t.Errorf("queried user %q, want alice", q.users[0])
	}
}

func TestCache_RefreshReplacesWholesale(t *testing.T) {
	q := &fakeQuerier{records: []model.QueueRecord{rec("1", "a", model.QueueStateRunning)}}
	c := newTestCache(q)
	if err := c.Refresh(context.Background(), "u"); err != nil {
		t.Fatal(err)
	}

	q.records = []model.QueueRecord{rec("2", "b", model.QueueStatePending)}
	if err := c.Refresh(context.Background(), "u"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup("a"); ok {
		t.Error("stale record a survived refresh")
	}
	if _, ok := c.Lookup("b"); !ok {
		t.Error("record b missing after refresh")
	}
}

func TestCache_FailedRefreshLeavesContents(t *testing.T) {
	q := &fakeQuerier{records: []model.QueueRecord{
		rec("1", "a", model.QueueStateRunning),
		rec("2", "b", model.QueueStatePending),
	}}
	c := newTestCache(q)
	if err := c.Refresh(context.Background(), "u"); err != nil {
		t.Fatal(err)
	}
	before := c.Records()
	beforeA, _ := c.Lookup("a")

	q.err = model.NewParseError("query", "garbage")
	if err := c.Refresh(context.Background(), "u"); !errors.Is(err, q.err) {
		t.Fatalf("Refresh() error = %v, want %v", err, q.err)
	}

	if !reflect.DeepEqual(c.Records(), before) {
		t.Errorf("Records() changed after failed refresh: %+v", c.Records())
	}
	afterA, ok := c.Lookup("a")
	if !ok || afterA != beforeA {
		t.Errorf("Lookup(a) = %+v, %v; want %+v", afterA, ok, beforeA)
	}
	if !c.Populated() {
		t.Error("failed refresh emptied the cache")
	}
}

func TestCache_FailedRefreshStaysEmpty(t *testing.T) {
	c := newTestCache(&fakeQuerier{err: errors.New("squeue: not found")})
	if err := c.Refresh(context.Background(), "u"); err == nil {
		t.Fatal("Refresh() error = nil")
	}
	if c.Populated() || len(c.Records()) != 0 {
		t.Error("failed refresh populated an empty cache")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(&fakeQuerier{records: []model.QueueRecord{rec("1", "a", model.QueueStateRunning)}})
	if err := c.Refresh(context.Background(), "u"); err != nil {
		t.Fatal(err)
	}
	c.Invalidate()
	if c.Populated() {
		t.Error("cache populated after Invalidate")
	}
	if _, ok := c.Lookup("a"); ok {
		t.Error("Lookup found a record after Invalidate")
	}
}

func TestCache_DuplicateNamesKept(t *testing.T) {
	c := newTestCache(&fakeQuerier{records: []model.QueueRecord{
		rec("1", "dup", model.QueueStateRunning),
		rec("2", "other", model.QueueStateRunning),
		rec("3", "dup", model.QueueStatePending),
	}})
	if err := c.Refresh(context.Background(), "u"); err != nil {
		t.Fatal(err)
	}

	all := c.LookupAll("dup")
	if len(all) != 2 || all[0].JobID != "1" || all[1].JobID != "3" {
		t.Errorf("LookupAll(dup) = %+v", all)
	}
	if first, _ := c.Lookup("dup"); first.JobID != "1" {
		t.Errorf("Lookup(dup) = %+v, want job 1", first)
	}
	if got := c.Records(); len(got) != 3 || got[1].Name != "other" {
		t.Errorf("Records() lost queue order: %+v", got)
	}
}

func TestCache_Insert(t *testing.T) {
	c := newTestCache(&fakeQuerier{})
	if err := c.Refresh(context.Background(), "u"); err != nil {
		t.Fatal(err)
	}
	c.Insert(rec("9", "fresh", model.QueueStatePending))
	if got, ok := c.Lookup("fresh"); !ok || got.JobID != "9" {
		t.Errorf("Lookup(fresh) = %+v, %v", got, ok)
	}

	empty := newTestCache(&fakeQuerier{})
	empty.Insert(rec("9", "fresh", model.QueueStatePending))
	if empty.Populated() {
		t.Error("Insert marked an empty cache as populated")
	}
}
