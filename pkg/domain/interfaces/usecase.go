package interfaces

import (
	"context"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// GateUseCase defines the authorization gate for test dispatch
type GateUseCase interface {
	// Evaluate checks the sender's repository permission and, when the
	// sender is authorized, resolves the dispatch outputs from the
	// pull request head.
	Evaluate(ctx context.Context, input *model.GateInput) (*model.GateDecision, error)
}

// DispatchUseCase defines the test-farm fan-out
type DispatchUseCase interface {
	// Dispatch submits one test run per target for an allowed gate
	// decision. Target submissions are independent: a rejected target
	// never prevents the remaining ones.
	Dispatch(ctx context.Context, decision *model.GateDecision) (*model.DispatchRun, error)

	// Wait polls the farm until every submitted request of the run is
	// in a terminal state or the context expires.
	Wait(ctx context.Context, run *model.DispatchRun) error
}
