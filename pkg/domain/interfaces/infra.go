package interfaces

import (
	"context"
	"io"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// FarmClient defines operations against the remote test farm
type FarmClient interface {
	// Submit requests a test run and returns the farm's request status
	Submit(ctx context.Context, req *model.FarmRequest) (*model.FarmRequestStatus, error)

	// GetRequest returns the current status of a submitted request
	GetRequest(ctx context.Context, id string) (*model.FarmRequestStatus, error)
}

// BuildClient defines operations against the build-automation service
type BuildClient interface {
	// SubmitBuild submits a source archive build for one chroot and
	// returns the service's build ID.
	SubmitBuild(ctx context.Context, chroot, srpmURL string) (string, error)
}

// DispatchRepository persists dispatch runs
type DispatchRepository interface {
	Put(ctx context.Context, run *model.DispatchRun) error
	Get(ctx context.Context, id string) (*model.DispatchRun, error)
}

// Notifier announces dispatch results to a chat channel
type Notifier interface {
	NotifyDispatch(ctx context.Context, run *model.DispatchRun) error
}

// ArtifactStore uploads packaging artifacts to object storage
type ArtifactStore interface {
	// Upload stores an object and returns its storage URL
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}
