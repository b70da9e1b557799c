package testingfarm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultBaseURL is the public Testing Farm API endpoint
const DefaultBaseURL = "https://api.testing-farm.io/v0.1"

type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option is a functional option for client configuration
type Option func(*client)

// WithBaseURL overrides the API endpoint, mainly for tests
func WithBaseURL(url string) Option {
	return func(c *client) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Testing Farm API client
func NewClient(apiKey string, opts ...Option) interfaces.FarmClient {
	c := &client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request/response bodies follow the Testing Farm request API shape

type submitBody struct {
	APIKey       string        `json:"api_key"`
	Test         testSpec      `json:"test"`
	Environments []environment `json:"environments"`
}

type testSpec struct {
	FMF fmfSpec `json:"fmf"`
}

type fmfSpec struct {
	URL  string `json:"url"`
	Ref  string `json:"ref"`
	Name string `json:"name,omitempty"`
}

type environment struct {
	Arch      string            `json:"arch"`
	OS        osSpec            `json:"os"`
	TMT       *tmtSpec          `json:"tmt,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	Secrets   map[string]string `json:"secrets,omitempty"`
}

type osSpec struct {
	Compose string `json:"compose"`
}

type tmtSpec struct {
	Context map[string]string `json:"context,omitempty"`
}

type requestResponse struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Result struct {
		Summary string `json:"summary"`
	} `json:"result"`
}

// Submit requests a test run and returns the farm's request status
func (c *client) Submit(ctx context.Context, req *model.FarmRequest) (*model.FarmRequestStatus, error) {
	body := submitBody{
		APIKey: c.apiKey,
		Test: testSpec{
			FMF: fmfSpec{
				URL:  req.GitURL,
				Ref:  req.GitRef,
				Name: req.PlanFilter,
			},
		},
		Environments: []environment{
			{
				Arch:      req.Arch,
				OS:        osSpec{Compose: req.Compose},
				Variables: req.Variables,
				Secrets:   req.Secrets,
			},
		},
	}
	if len(req.Context) > 0 {
		body.Environments[0].TMT = &tmtSpec{Context: req.Context}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal farm request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/requests", bytes.NewReader(payload))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create farm request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to submit farm request",
			goerr.V("compose", req.Compose), goerr.V("arch", req.Arch))
	}
	defer resp.Body.Close()

	return c.decodeStatus(resp)
}

// GetRequest returns the current status of a submitted request
func (c *client) GetRequest(ctx context.Context, id string) (*model.FarmRequestStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/requests/"+id, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create farm status request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get farm request", goerr.V("id", id))
	}
	defer resp.Body.Close()

	return c.decodeStatus(resp)
}

func (c *client) decodeStatus(resp *http.Response) (*model.FarmRequestStatus, error) {
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("unexpected status code from test farm",
			goerr.V("status", resp.StatusCode), goerr.V("body", string(data)))
	}

	var body requestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, goerr.Wrap(err, "failed to decode farm response")
	}
	if body.ID == "" {
		return nil, goerr.New("farm response is missing request id")
	}

	return &model.FarmRequestStatus{
		ID:      body.ID,
		State:   model.FarmState(body.State),
		Summary: body.Result.Summary,
	}, nil
}
