package pipeline

import (
	"os"
	"sync"

	"amv-gen/internal/logging"
)

type tracked struct {
	path string
	dir  bool
}

// Scope owns the temporary files of one run and deletes them in reverse
// registration order when released. Kept paths survive Release.
type Scope struct {
	mu    sync.Mutex
	items []tracked
	kept  map[string]bool
	log   *logging.Logger
}

func NewScope(log *logging.Logger) *Scope {
	if log == nil {
		log = logging.Discard()
	}
	return &Scope{kept: map[string]bool{}, log: log}
}

func (s *Scope) Track(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, tracked{path: path})
}

// TrackDir registers a directory that is removed with everything inside it.
func (s *Scope) TrackDir(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, tracked{path: path, dir: true})
}

func (s *Scope) Keep(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kept[path] = true
}

// Release deletes every tracked path that was not kept. Missing files are
// not an error. Release is idempotent.
func (s *Scope) Release() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items
	s.items = nil

	var errs []error
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if s.kept[it.path] {
			continue
		}
		var err error
		if it.dir {
			err = os.RemoveAll(it.path)
		} else {
			err = os.Remove(it.path)
		}
		if err != nil && !os.IsNotExist(err) {
			s.log.Warnf("pipeline: cleanup %s: %v", it.path, err)
			errs = append(errs, err)
		}
	}
	return errs
}
