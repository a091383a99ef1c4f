package retention

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/agentoven/console/pkg/models"
	"github.com/rs/zerolog/log"
)

// LocalFileArchiver writes expired runs as JSONL files to a local directory:
//
//	{basePath}/eval_runs/2026-02-20T15-04-05.000000000Z.jsonl[.gz]
type LocalFileArchiver struct {
	basePath string
	compress bool
	now      func() time.Time
}

// NewLocalFileArchiver creates a file-based archiver. If basePath is empty,
// it defaults to "~/.agent-console/archive".
func NewLocalFileArchiver(basePath string, compress bool) *LocalFileArchiver {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			basePath = filepath.Join(os.TempDir(), "agent-console", "archive")
		} else {
			basePath = filepath.Join(home, ".agent-console", "archive")
		}
	}
	return &LocalFileArchiver{basePath: basePath, compress: compress, now: time.Now}
}

func (a *LocalFileArchiver) Kind() string { return "local" }

func (a *LocalFileArchiver) ArchiveRuns(_ context.Context, runs []models.EvaluationRun) (path string, err error) {
	dir := filepath.Join(a.basePath, "eval_runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	filename := a.now().UTC().Format("2006-01-02T15-04-05.000000000Z") + ".jsonl"
	if a.compress {
		filename += ".gz"
	}
	fpath := filepath.Join(dir, filename)

	f, err := os.Create(fpath)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
		if err != nil {
			os.Remove(fpath)
			path = ""
		}
	}()

	var w io.Writer = f
	if a.compress {
		gw := gzip.NewWriter(f)
		defer func() { err = errors.Join(err, gw.Close()) }()
		w = gw
	}

	enc := json.NewEncoder(w)
	for _, r := range runs {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("encode run %s: %w", r.ID, err)
		}
	}

	log.Debug().Str("path", fpath).Int("count", len(runs)).Msg("Archived evaluation runs to local file")
	return fpath, nil
}
