package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"weathermap/internal/file"
)

// fileStore is a Store that additionally persists every record as JSON
// under dir, so task state survives a restart. Reads are served from the
// in-memory copy.
type fileStore struct {
	memoryStore
	dir string
}

// NewFileStore loads persisted tasks from dir and returns a write-through
// store. Tasks that were non-terminal when the previous process died are
// marked FAILURE: their workers are gone and no retry exists.
func NewFileStore(dir string) (Store, error) { //nolint:ireturn
	s := &fileStore{
		memoryStore: memoryStore{tasks: make(map[string]Task)},
		dir:         dir,
	}
	if err := file.EnsureDir(dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read tasks dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name())) //nolint:gosec // app-owned dir
		if err != nil {
			continue
		}
		var t Task
		if err := json.Unmarshal(raw, &t); err != nil || t.ID == "" {
			continue
		}
		if !t.Status.Terminal() {
			t.Status = StatusFailure
			t.Message = "task interrupted by service restart"
			t.UpdatedAt = time.Now().UTC()
			s.persist(t)
		}
		s.tasks[t.ID] = t
	}
	return s, nil
}

func (s *fileStore) Put(t Task) {
	s.memoryStore.Put(t)
	s.persist(t)
}

func (s *fileStore) persist(t Task) {
	path := filepath.Join(s.dir, t.ID+".json")
	if err := file.WriteJSONAtomic(path, t); err != nil { // best-effort
		log.Warn().Str("task_id", t.ID).Err(err).Msg("persist task failed")
	}
}
