package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"amv-gen/internal"
	"amv-gen/internal/logging"
	"amv-gen/internal/s3"
)

// Janitor removes what crashed or killed runs leave behind and expires old
// results.
type Janitor struct {
	workDir    string
	resultsDir string
	staleAge   time.Duration
	retention  time.Duration

	store  s3.Client
	prefix string

	log *logging.Logger
}

type SweepReport struct {
	Workspaces int
	Partials   int
	Results    int
	Archived   int
}

// NewJanitor builds a janitor from config. store may be nil.
func NewJanitor(cfg internal.Config, store s3.Client, log *logging.Logger) *Janitor {
	if log == nil {
		log = logging.Discard()
	}
	staleAge := cfg.StaleRunAge
	if staleAge <= 0 {
		staleAge = 6 * time.Hour
	}
	return &Janitor{
		workDir:    cfg.WorkDir,
		resultsDir: cfg.ResultsDir,
		staleAge:   staleAge,
		retention:  cfg.ResultRetention,
		store:      store,
		prefix:     cfg.ResultsPrefix,
		log:        log,
	}
}

func (j *Janitor) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	var rep SweepReport
	var errs []error

	n, err := removeOlder(j.workDir, now.Add(-j.staleAge), isRunWorkspace)
	rep.Workspaces = n
	errs = append(errs, err)

	n, err = removeOlder(j.resultsDir, now.Add(-j.staleAge), func(e os.DirEntry) bool {
		return strings.HasSuffix(e.Name(), ".part")
	})
	rep.Partials = n
	errs = append(errs, err)

	if j.retention > 0 {
		n, err = removeOlder(j.resultsDir, now.Add(-j.retention), func(e os.DirEntry) bool {
			return !e.IsDir() && strings.HasSuffix(e.Name(), "_AMV.mp4")
		})
		rep.Results = n
		errs = append(errs, err)

		if j.store != nil {
			n, err = j.expireArchive(ctx, now.Add(-j.retention))
			rep.Archived = n
			errs = append(errs, err)
		}
	}

	j.log.Infof("janitor: removed %d workspace(s), %d partial(s), %d result(s), %d archived object(s)",
		rep.Workspaces, rep.Partials, rep.Results, rep.Archived)
	return rep, errors.Join(errs...)
}

// isRunWorkspace matches the <run-id> directories the pipeline creates.
// Anything else under WORK_DIR belongs to the caller.
func isRunWorkspace(e os.DirEntry) bool {
	if !e.IsDir() {
		return false
	}
	_, err := uuid.Parse(e.Name())
	return err == nil
}

func (j *Janitor) expireArchive(ctx context.Context, cutoff time.Time) (int, error) {
	objects, err := j.store.List(ctx, j.prefix)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, obj := range objects {
		if obj.LastModified.IsZero() || !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := j.store.Delete(ctx, obj.Key); err != nil {
			j.log.Errorf("janitor: delete s3 %s: %v", obj.Key, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// removeOlder deletes entries of dir selected by match whose mtime is
// before cutoff. A missing dir is not an error.
func removeOlder(dir string, cutoff time.Time, match func(os.DirEntry) bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if !match(e) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
