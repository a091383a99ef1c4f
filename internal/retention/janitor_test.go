package retention

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/agentoven/console/pkg/models"
)

type memRuns struct {
	mu   sync.Mutex
	runs []models.EvaluationRun
}

func (m *memRuns) ExpiredRuns(cutoff time.Time) []models.EvaluationRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EvaluationRun
	for _, r := range m.runs {
		if r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memRuns) PurgeRuns(_ context.Context, ids []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	var kept []models.EvaluationRun
	for _, r := range m.runs {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	n := len(m.runs) - len(kept)
	m.runs = kept
	return n
}

type failingArchiver struct{}

func (failingArchiver) Kind() string { return "failing" }
func (failingArchiver) ArchiveRuns(context.Context, []models.EvaluationRun) (string, error) {
	return "", errors.New("disk full")
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedRuns() *memRuns {
	return &memRuns{runs: []models.EvaluationRun{
		{ID: "fresh", Timestamp: fixedNow.Add(-24 * time.Hour)},
		{ID: "old-1", Timestamp: fixedNow.AddDate(0, 0, -40)},
		{ID: "old-2", Timestamp: fixedNow.AddDate(0, 0, -31)},
	}}
}

func newTestJanitor(runs RunStore, a Archiver) *Janitor {
	j := NewJanitor(runs, a, 30, time.Hour)
	j.now = func() time.Time { return fixedNow }
	return j
}

func TestRunCycle_PurgeWithoutArchiver(t *testing.T) {
	runs := seedRuns()
	stats := newTestJanitor(runs, nil).RunCycle(context.Background())

	if stats.Expired != 2 || stats.Purged != 2 || stats.Archived != 0 {
		t.Errorf("stats = %+v, want 2 expired, 2 purged, 0 archived", stats)
	}
	if len(runs.runs) != 1 || runs.runs[0].ID != "fresh" {
		t.Errorf("remaining runs = %+v, want only fresh", runs.runs)
	}
}

func TestRunCycle_ArchiveFailureKeepsRuns(t *testing.T) {
	runs := seedRuns()
	stats := newTestJanitor(runs, failingArchiver{}).RunCycle(context.Background())

	if stats.Purged != 0 {
		t.Errorf("Purged = %d, want 0 when archiving fails", stats.Purged)
	}
	if len(stats.Errors) != 1 {
		t.Errorf("Errors = %v, want one", stats.Errors)
	}
	if len(runs.runs) != 3 {
		t.Errorf("len(runs) = %d, want 3", len(runs.runs))
	}
}

func TestRunCycle_NothingExpired(t *testing.T) {
	runs := &memRuns{runs: []models.EvaluationRun{{ID: "fresh", Timestamp: fixedNow}}}
	stats := newTestJanitor(runs, nil).RunCycle(context.Background())
	if stats.Expired != 0 || stats.Purged != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestRunCycle_ArchivesToLocalFile(t *testing.T) {
	for _, compress := range []bool{false, true} {
		runs := seedRuns()
		archiver := NewLocalFileArchiver(t.TempDir(), compress)
		stats := newTestJanitor(runs, archiver).RunCycle(context.Background())

		if stats.Archived != 2 || stats.Purged != 2 || len(stats.URIs) != 1 {
			t.Fatalf("compress=%v: stats = %+v", compress, stats)
		}

		f, err := os.Open(stats.URIs[0])
		if err != nil {
			t.Fatalf("open archive: %v", err)
		}
		defer f.Close()

		var scanner *bufio.Scanner
		if compress {
			gr, err := gzip.NewReader(f)
			if err != nil {
				t.Fatalf("gzip reader: %v", err)
			}
			scanner = bufio.NewScanner(gr)
		} else {
			scanner = bufio.NewScanner(f)
		}

		var ids []string
		for scanner.Scan() {
			var r models.EvaluationRun
			if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
				t.Fatalf("decode line: %v", err)
			}
			ids = append(ids, r.ID)
		}
		if len(ids) != 2 || ids[0] != "old-1" || ids[1] != "old-2" {
			t.Errorf("compress=%v: archived ids = %v", compress, ids)
		}
	}
}

func TestNewJanitor_MinimumInterval(t *testing.T) {
	j := NewJanitor(&memRuns{}, nil, 30, time.Second)
	if j.interval != time.Hour {
		t.Errorf("interval = %v, want 1h", j.interval)
	}
}
