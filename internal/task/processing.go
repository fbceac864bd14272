package task

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// process runs one task to a terminal state. It owns every write to its
// task record; failures are recorded on the task and never escape to
// sibling workers or the dispatcher.
func (m *Manager) process(taskID string, imageBytes []byte, configText, mapName string) {
	m.semaphore <- struct{}{}
	defer func() { <-m.semaphore }()

	ctx := m.baseContext()
	if timeout := m.renderDeadline(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m.progress(taskID, "Saving uploaded map components...")
	arts, err := m.artifacts.Materialize(imageBytes, configText, mapName)
	if err != nil {
		m.fail(taskID, err)
		return
	}

	m.progress(taskID, "Rendering final map image...")
	outputPath := m.artifacts.FinalPathFor(arts.ConfigPath)
	if err := m.currentRenderer().Render(ctx, arts.ConfigPath, outputPath); err != nil {
		m.fail(taskID, err)
		return
	}

	m.succeed(taskID, filepath.Base(outputPath))
}

func (m *Manager) progress(taskID, message string) {
	m.replace(taskID, StatusProcessing, message, "")
}

func (m *Manager) succeed(taskID, artifactName string) {
	// the stored message is a stand-in; status reads resolve the real
	// download URL from the artifact name
	m.replace(taskID, StatusSuccess, "Placeholder for final map URL.", artifactName)
	log.Info().Str("task_id", taskID).Str("artifact", artifactName).Msg("map render succeeded")
}

func (m *Manager) fail(taskID string, cause error) {
	m.replace(taskID, StatusFailure, cause.Error(), "")
	log.Warn().Str("task_id", taskID).Err(cause).Msg("map render failed")
}

// replace writes a whole new task record. Only the owning worker calls it,
// which is what keeps the status sequence monotonic.
func (m *Manager) replace(taskID string, status Status, message, artifactName string) {
	t, ok := m.store.Get(taskID)
	if !ok {
		return
	}
	t.Status = status
	t.Message = message
	if artifactName != "" {
		t.ArtifactName = artifactName
	}
	t.UpdatedAt = time.Now().UTC()
	m.store.Put(t)
}

func (m *Manager) renderDeadline() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.renderTimeout
}
