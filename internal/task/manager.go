package task

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"weathermap/internal/artifact"
	"weathermap/internal/catalog"
	"weathermap/internal/render"
)

const defaultMaxConcurrent = 4

// Options configures a Manager.
type Options struct {
	Store                Store
	Artifacts            *artifact.Store
	Renderer             render.Renderer
	MaxConcurrentRenders int
	RenderTimeout        time.Duration
}

// Manager fans a validated submission out into one rendering task per
// installation and runs each task on its own worker goroutine. Dispatch
// returns before any worker finishes; progress is observable only through
// the Store.
type Manager struct {
	store     Store
	artifacts *artifact.Store
	semaphore chan struct{}
	workersWG sync.WaitGroup

	mu            sync.RWMutex
	renderer      render.Renderer
	baseCtx       context.Context
	renderTimeout time.Duration
}

// NewManager creates a manager with the provided collaborators.
func NewManager(opts Options) *Manager {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.MaxConcurrentRenders <= 0 {
		opts.MaxConcurrentRenders = defaultMaxConcurrent
	}
	return &Manager{
		store:         opts.Store,
		artifacts:     opts.Artifacts,
		renderer:      opts.Renderer,
		semaphore:     make(chan struct{}, opts.MaxConcurrentRenders),
		baseCtx:       context.Background(),
		renderTimeout: opts.RenderTimeout,
	}
}

// Dispatch creates one PENDING task per installation and starts a worker
// for each. All tasks are registered before any worker runs, so a caller
// holding the returned refs can immediately poll every id. Each worker gets
// its own copy of the image payload; nothing mutable is shared between
// siblings.
func (m *Manager) Dispatch(sub Submission, installations []catalog.Installation) []Ref {
	now := time.Now().UTC()
	refs := make([]Ref, 0, len(installations))
	for _, inst := range installations {
		id := uuid.NewString()
		m.store.Put(Task{
			ID:        id,
			Status:    StatusPending,
			Message:   "Map creation task has been queued.",
			UpdatedAt: now,
		})
		refs = append(refs, Ref{Hostname: inst.Hostname, TaskID: id})
	}

	for _, ref := range refs {
		imageCopy := bytes.Clone(sub.Image)
		m.workersWG.Add(1)
		go func(taskID string, img []byte) {
			defer m.workersWG.Done()
			m.process(taskID, img, sub.Config, sub.MapName)
		}(ref.TaskID, imageCopy)
	}

	log.Info().Int("tasks", len(refs)).Str("map_name", sub.MapName).Msg("map creation dispatched")
	return refs
}

// Get returns a snapshot of the task, if known.
func (m *Manager) Get(id string) (Task, bool) {
	return m.store.Get(id)
}

// SetBaseContext sets the context governing in-flight renders. Intended to
// be set at startup and cancelled during shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// WaitAll blocks until all in-flight workers finish or ctx is done.
// Returns true if all workers finished.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// UseRenderer swaps the renderer. Intended for test setup only; not safe
// for concurrent mutation with running tasks.
func (m *Manager) UseRenderer(r render.Renderer) {
	m.mu.Lock()
	m.renderer = r
	m.mu.Unlock()
}

func (m *Manager) currentRenderer() render.Renderer { //nolint:ireturn
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.renderer
}

func (m *Manager) baseContext() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.baseCtx == nil {
		return context.Background()
	}
	return m.baseCtx
}
