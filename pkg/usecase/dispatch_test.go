package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/infra/memory"
	"github.com/m-mizutani/drover/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// mockFarmClient records submissions and can reject selected composes
type mockFarmClient struct {
	mu         sync.Mutex
	submitted  []*model.FarmRequest
	failOn     map[string]bool
	states     map[string][]model.FarmState
	stateIndex map[string]int
}

func (m *mockFarmClient) Submit(_ context.Context, req *model.FarmRequest) (*model.FarmRequestStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn[req.Compose] {
		return nil, goerr.New("farm rejected the request")
	}

	m.submitted = append(m.submitted, req)
	return &model.FarmRequestStatus{
		ID:    "req-" + req.Compose,
		State: model.FarmStateQueued,
	}, nil
}

func (m *mockFarmClient) GetRequest(_ context.Context, id string) (*model.FarmRequestStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	states, ok := m.states[id]
	if !ok {
		return &model.FarmRequestStatus{ID: id, State: model.FarmStateComplete}, nil
	}

	idx := m.stateIndex[id]
	if idx >= len(states) {
		idx = len(states) - 1
	}
	m.stateIndex[id]++
	return &model.FarmRequestStatus{ID: id, State: states[idx]}, nil
}

func allowedDecision() *model.GateDecision {
	return &model.GateDecision{
		Input: model.GateInput{
			Owner:    "acme",
			Repo:     "widget",
			PRNumber: 42,
			Sender:   "alice",
		},
		Allowed:    true,
		Permission: model.PermissionWrite,
		Outputs: model.DispatchOutputs{
			HeadSHA:  "0123456789abcdef",
			HeadRef:  "feature/checks",
			CloneURL: "https://github.com/acme/widget.git",
		},
		DecidedAt: time.Now(),
	}
}

func TestDispatch_AllTargets(t *testing.T) {
	farm := &mockFarmClient{}
	repo := memory.New()
	uc := usecase.NewDispatch(farm, repo,
		usecase.WithSecrets(map[string]string{"QUAY_TOKEN": "abc"}),
	)

	run, err := uc.Dispatch(context.Background(), allowedDecision())
	gt.NoError(t, err)
	gt.Array(t, run.Results).Length(3)
	gt.Value(t, run.AllSubmitted()).Equal(true)
	gt.Array(t, farm.submitted).Length(3)

	for _, req := range farm.submitted {
		gt.Value(t, req.GitURL).Equal("https://github.com/acme/widget.git")
		gt.Value(t, req.GitRef).Equal("0123456789abcdef")
		gt.Value(t, req.Secrets["QUAY_TOKEN"]).Equal("abc")
	}

	// Run must be persisted
	stored, err := repo.Get(context.Background(), run.ID)
	gt.NoError(t, err)
	gt.Value(t, stored).NotNil()
	gt.Array(t, stored.Results).Length(3)
}

func TestDispatch_ContinueOnError(t *testing.T) {
	// One target's submission failure must not block the others
	targets := model.DefaultTargets()
	farm := &mockFarmClient{failOn: map[string]bool{targets[1].Compose: true}}
	repo := memory.New()
	uc := usecase.NewDispatch(farm, repo)

	run, err := uc.Dispatch(context.Background(), allowedDecision())
	gt.NoError(t, err)
	gt.Array(t, run.Results).Length(3)
	gt.Value(t, run.AllSubmitted()).Equal(false)
	gt.Array(t, run.FailedTargets()).Length(1)
	gt.Value(t, run.FailedTargets()[0].Target.Name).Equal(targets[1].Name)

	// The other two were still submitted
	gt.Array(t, farm.submitted).Length(2)
}

func TestDispatch_DeniedDecision(t *testing.T) {
	uc := usecase.NewDispatch(&mockFarmClient{}, memory.New())

	decision := allowedDecision()
	decision.Allowed = false

	if _, err := uc.Dispatch(context.Background(), decision); err == nil {
		t.Error("Dispatch() should refuse a denied decision")
	}
}

func TestDispatch_MissingOutputs(t *testing.T) {
	uc := usecase.NewDispatch(&mockFarmClient{}, memory.New())

	decision := allowedDecision()
	decision.Outputs = model.DispatchOutputs{}

	if _, err := uc.Dispatch(context.Background(), decision); err == nil {
		t.Error("Dispatch() should require dispatch outputs")
	}
}

func TestDispatch_Wait(t *testing.T) {
	targets := model.DefaultTargets()
	farm := &mockFarmClient{
		states: map[string][]model.FarmState{
			"req-" + targets[0].Compose: {model.FarmStateRunning, model.FarmStateComplete},
		},
		stateIndex: map[string]int{},
	}
	repo := memory.New()
	uc := usecase.NewDispatch(farm, repo,
		usecase.WithPollInterval(time.Millisecond),
	)

	run, err := uc.Dispatch(context.Background(), allowedDecision())
	gt.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	gt.NoError(t, uc.Wait(ctx, run))

	for _, res := range run.Results {
		if !res.State.IsTerminal() {
			t.Errorf("target %s state = %s, want terminal", res.Target.Name, res.State)
		}
	}
}
