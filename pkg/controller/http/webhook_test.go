package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	githubctrl "github.com/m-mizutani/drover/pkg/controller/github"
	controller "github.com/m-mizutani/drover/pkg/controller/http"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/usecase"
)

// mockGateUseCase denies every dispatch so webhook tests never fan out
type mockGateUseCase struct {
	evaluated int
}

func (m *mockGateUseCase) Evaluate(ctx context.Context, input *model.GateInput) (*model.GateDecision, error) {
	m.evaluated++
	return &model.GateDecision{
		Input:      *input,
		Allowed:    false,
		Permission: model.PermissionRead,
	}, nil
}

type mockDispatchUseCase struct{}

func (m *mockDispatchUseCase) Dispatch(ctx context.Context, decision *model.GateDecision) (*model.DispatchRun, error) {
	return &model.DispatchRun{}, nil
}

func (m *mockDispatchUseCase) Wait(ctx context.Context, run *model.DispatchRun) error {
	return nil
}

func newProcessor() (*githubctrl.EventProcessor, *mockGateUseCase) {
	gateUC := &mockGateUseCase{}
	return githubctrl.NewEventProcessor(gateUC, &mockDispatchUseCase{}), gateUC
}

// generateSignature generates HMAC-SHA256 signature for testing
func generateSignature(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func pullRequestPayload() map[string]interface{} {
	return map[string]interface{}{
		"action": "opened",
		"pull_request": map[string]interface{}{
			"number": 42,
		},
		"repository": map[string]interface{}{
			"name":      "widget",
			"full_name": "acme/widget",
			"owner": map[string]interface{}{
				"login": "acme",
			},
		},
		"sender": map[string]interface{}{
			"login": "testuser",
		},
	}
}

func TestWebhookHandler_SignatureVerification(t *testing.T) {
	secret := "test-secret"
	processor, _ := newProcessor()
	handler := controller.NewWebhookHandler(secret, usecase.NewWebhook(), processor)

	tests := []struct {
		name           string
		payload        string
		signature      string
		wantStatusCode int
	}{
		{
			name:           "Valid signature",
			payload:        `{"action":"opened","pull_request":{"number":1},"repository":{"full_name":"test/repo"},"sender":{"login":"testuser"}}`,
			signature:      "", // Will be generated
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "Invalid signature",
			payload:        `{"action":"opened"}`,
			signature:      "sha256=invalid",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "Missing signature",
			payload:        `{"action":"opened"}`,
			signature:      "",
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(tt.payload)
			signature := tt.signature
			if signature == "" && tt.wantStatusCode == http.StatusOK {
				signature = generateSignature(secret, payload)
			}

			req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-GitHub-Event", "pull_request")
			req.Header.Set("X-GitHub-Delivery", "test-delivery")
			req.Header.Set("X-Hub-Signature-256", signature)

			w := httptest.NewRecorder()
			handler.Handle(w, req)

			if w.Code != tt.wantStatusCode {
				t.Errorf("Handle() status = %v, want %v", w.Code, tt.wantStatusCode)
			}
		})
	}
}

func TestWebhookHandler_EventRouting(t *testing.T) {
	secret := "test-secret"
	processor, gateUC := newProcessor()
	handler := controller.NewWebhookHandler(secret, usecase.NewWebhook(), processor)

	payloadBytes, _ := json.Marshal(pullRequestPayload())
	signature := generateSignature(secret, payloadBytes)

	req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-GitHub-Delivery", "test-delivery")
	req.Header.Set("X-Hub-Signature-256", signature)

	w := httptest.NewRecorder()
	handler.Handle(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Handle() status = %v, want %v, body = %s", w.Code, http.StatusOK, w.Body.String())
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Errorf("Failed to decode response: %v", err)
	}
	if response["status"] != "success" {
		t.Errorf("Response status = %v, want success", response["status"])
	}

	if gateUC.evaluated != 1 {
		t.Errorf("Gate evaluations = %d, want 1", gateUC.evaluated)
	}
}

func TestWebhookHandler_Integration(t *testing.T) {
	ctx := context.Background()
	secret := "integration-test-secret"
	processor, _ := newProcessor()

	server, err := controller.NewServer(
		ctx,
		usecase.NewWebhook(),
		processor,
		controller.WithAddr("localhost:0"),
		controller.WithWebhookSecret(secret),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	payloadBytes, _ := json.Marshal(pullRequestPayload())
	signature := generateSignature(secret, payloadBytes)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/hooks/github/app", bytes.NewReader(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-GitHub-Delivery", "integration-test")
	req.Header.Set("X-Hub-Signature-256", signature)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer func() {
		_ = resp.Body.Close() // Error ignored in test
	}()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status code = %v, want %v", resp.StatusCode, http.StatusOK)
	}
}
