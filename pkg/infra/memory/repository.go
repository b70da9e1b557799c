package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// Repository is an in-memory dispatch repository used by one-shot CLI
// dispatch and tests.
type Repository struct {
	mu   sync.RWMutex
	runs map[string]*model.DispatchRun
}

var _ interfaces.DispatchRepository = (*Repository)(nil)

// New creates an empty in-memory repository
func New() *Repository {
	return &Repository{
		runs: make(map[string]*model.DispatchRun),
	}
}

// Put stores a dispatch run keyed by its ID
func (r *Repository) Put(_ context.Context, run *model.DispatchRun) error {
	if run.ID == "" {
		return goerr.New("dispatch run has no ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *run
	copied.Results = append([]model.TargetResult(nil), run.Results...)
	r.runs[run.ID] = &copied

	return nil
}

// Get returns a dispatch run by ID, or nil when it does not exist
func (r *Repository) Get(_ context.Context, id string) (*model.DispatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}

	copied := *run
	copied.Results = append([]model.TargetResult(nil), run.Results...)
	return &copied, nil
}
