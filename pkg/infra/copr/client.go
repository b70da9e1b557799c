package copr

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultBaseURL is the public Copr API endpoint
const DefaultBaseURL = "https://copr.fedorainfracloud.org/api_3"

type client struct {
	baseURL    string
	token      string
	owner      string
	project    string
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

// NewClient creates a build service client for one owner/project pair
func NewClient(token, owner, project string, opts ...Option) interfaces.BuildClient {
	c := &client{
		baseURL:    DefaultBaseURL,
		token:      token,
		owner:      owner,
		project:    project,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type buildBody struct {
	OwnerName   string   `json:"ownername"`
	ProjectName string   `json:"projectname"`
	Chroots     []string `json:"chroots"`
	PkgsURL     string   `json:"pkgs"`
}

type buildResponse struct {
	ID json.Number `json:"id"`
}

// SubmitBuild submits a source archive build for one chroot
func (c *client) SubmitBuild(ctx context.Context, chroot, srpmURL string) (string, error) {
	payload, err := json.Marshal(buildBody{
		OwnerName:   c.owner,
		ProjectName: c.project,
		Chroots:     []string{chroot},
		PkgsURL:     srpmURL,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal build request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/build/create/url", bytes.NewReader(payload))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to submit build", goerr.V("chroot", chroot))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", goerr.New("unexpected status code from build service",
			goerr.V("status", resp.StatusCode), goerr.V("chroot", chroot), goerr.V("body", string(data)))
	}

	var body buildResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", goerr.Wrap(err, "failed to decode build response")
	}
	if body.ID.String() == "" {
		return "", goerr.New("build response is missing build id")
	}

	return body.ID.String(), nil
}
