package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/olamide-hq/ragline/internal/models"
)

var (
	// ErrInvalidTransition marks a stage transition outside the transition
	// table. It is a programming/data error, never retried.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrStateExists is returned by CreateState when a state is already
	// recorded for the content hash.
	ErrStateExists = errors.New("processing state already exists")
)

// TransitionError carries the rejected transition pair.
type TransitionError struct {
	From models.ProcessingStage
	To   models.ProcessingStage
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid stage transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ArtifactUpdate attaches an artifact location to a state during a
// stage transition.
type ArtifactUpdate struct {
	Kind models.ArtifactKind
	Path string
}

// Manager is the sole authority for mutating ProcessingState.Stage.
type Manager struct {
	store *Store
	clock func() time.Time
}

func NewManager(store *Store) *Manager {
	return &Manager{store: store, clock: time.Now}
}

// GetState returns the current state for contentHash, nil when absent.
func (m *Manager) GetState(ctx context.Context, contentHash string) (*models.ProcessingState, error) {
	return m.store.Get(ctx, contentHash)
}

// CreateState records a new state at StageUploaded with the raw artifact
// path attached. It fails with ErrStateExists when a state is already
// present; callers that tolerate duplicates must check first.
func (m *Manager) CreateState(ctx context.Context, contentHash, filename, rawArtifactPath string) (*models.ProcessingState, error) {
	if existing, err := m.store.Get(ctx, contentHash); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrStateExists, shortHash(contentHash))
	}

	st := &models.ProcessingState{
		FileHash:  contentHash,
		Filename:  filename,
		Stage:     models.StageUploaded,
		CreatedAt: m.clock().UTC(),
	}
	st.SetArtifactPath(models.ArtifactRaw, rawArtifactPath)

	if err := m.store.Save(ctx, st); err != nil {
		return nil, err
	}
	log.Printf("Created processing state for %s (%s)", shortHash(contentHash), filename)
	return st, nil
}

// UpdateStage validates and applies a stage transition, optionally recording
// an error message (for StageFailed) and an artifact location. The updated
// state is persisted before it is returned; a persist failure leaves the
// caller with an error, never a silently diverged state.
func (m *Manager) UpdateStage(
	ctx context.Context,
	st *models.ProcessingState,
	target models.ProcessingStage,
	errorMessage string,
	artifact *ArtifactUpdate,
) (*models.ProcessingState, error) {
	if !st.Stage.CanTransitionTo(target) {
		return nil, &TransitionError{From: st.Stage, To: target}
	}

	// Mutate a copy so a failed persist leaves the caller's state at the
	// stage the store still holds.
	updated := *st
	updated.Stage = target
	if errorMessage != "" {
		updated.ErrorMessage = errorMessage
	} else if target != models.StageFailed {
		updated.ErrorMessage = ""
	}
	if artifact != nil {
		paths := make(map[string]string, len(st.ArtifactPaths)+1)
		for k, v := range st.ArtifactPaths {
			paths[k] = v
		}
		updated.ArtifactPaths = paths
		updated.SetArtifactPath(artifact.Kind, artifact.Path)
	}

	if err := m.store.Save(ctx, &updated); err != nil {
		return nil, err
	}
	*st = updated
	return st, nil
}

// ResetForReprocess supersedes the current run with a fresh one over the
// same raw artifact: stage back to StageUploaded, error cleared, artifact
// paths kept (the new run overwrites them). This is the only sanctioned way
// backward movement happens, and only on an explicit reprocess directive.
func (m *Manager) ResetForReprocess(ctx context.Context, st *models.ProcessingState) (*models.ProcessingState, error) {
	updated := *st
	updated.Stage = models.StageUploaded
	updated.ErrorMessage = ""
	if err := m.store.Save(ctx, &updated); err != nil {
		return nil, err
	}
	*st = updated
	log.Printf("Reset processing state for %s to %s (forced reprocess)", shortHash(st.FileHash), models.StageUploaded)
	return st, nil
}

// UpdateFilename corrects display metadata without a stage transition.
func (m *Manager) UpdateFilename(ctx context.Context, st *models.ProcessingState, filename string) error {
	if st.Filename == filename {
		return nil
	}
	updated := *st
	updated.Filename = filename
	if err := m.store.Save(ctx, &updated); err != nil {
		return err
	}
	*st = updated
	return nil
}

// ClearFileCache deletes the state record for one hash. Failure is
// non-fatal: it is logged and reported as false.
func (m *Manager) ClearFileCache(ctx context.Context, contentHash string) bool {
	return m.store.Delete(ctx, contentHash)
}
