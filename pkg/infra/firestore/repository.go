package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collectionDispatchRuns = "dispatch_runs"

// Repository persists dispatch runs in Firestore
type Repository struct {
	client *firestore.Client
}

var _ interfaces.DispatchRepository = (*Repository)(nil)

// New creates a Firestore-backed dispatch repository
func New(ctx context.Context, projectID string, opts ...option.ClientOption) (*Repository, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID))
	}

	return &Repository{client: client}, nil
}

// Close releases the underlying client
func (r *Repository) Close() error {
	return r.client.Close()
}

// Put stores a dispatch run keyed by its ID
func (r *Repository) Put(ctx context.Context, run *model.DispatchRun) error {
	if run.ID == "" {
		return goerr.New("dispatch run has no ID")
	}

	_, err := r.client.Collection(collectionDispatchRuns).Doc(run.ID).Set(ctx, run)
	if err != nil {
		return goerr.Wrap(err, "failed to store dispatch run", goerr.V("id", run.ID))
	}

	return nil
}

// Get returns a dispatch run by ID, or nil when it does not exist
func (r *Repository) Get(ctx context.Context, id string) (*model.DispatchRun, error) {
	doc, err := r.client.Collection(collectionDispatchRuns).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get dispatch run", goerr.V("id", id))
	}

	var run model.DispatchRun
	if err := doc.DataTo(&run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode dispatch run", goerr.V("id", id))
	}

	return &run, nil
}
