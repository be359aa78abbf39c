// Package services holds the REST implementations of the pipeline's
// collaborator interfaces.  Credentials are read-only here: a rejected
// token is reported upward as an authorization failure, never refreshed
// locally.
package services

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/config"
)

// restClient is the transport shared by every collaborator client: one
// timeout-bound http.Client, bearer auth, and the status-code mapping onto
// the pipeline's error taxonomy.
type restClient struct {
	config.Config
	http    *http.Client
	service string
	baseURL string
	token   string
	// apiKey is sent as a header, never in the URL, so transport errors and
	// logged endpoints can't leak it
	apiKey string
}

func newRESTClient(cfg *config.Config, service, baseURL, token string) *restClient {
	return &restClient{
		Config:  *cfg,
		http:    &http.Client{Timeout: time.Second * time.Duration(cfg.Environment.CallTimeoutSec)},
		service: service,
		baseURL: baseURL,
		token:   token,
	}
}

// do executes one request and returns the response body.  Network faults
// and timeouts are transient; HTTP statuses are mapped by classifyStatus.
func (c *restClient) do(ctx context.Context, method, url string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s request", c.service)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// connection faults and client timeouts are worth retrying
		return nil, &pipeline.TransientError{Err: errors.Wrapf(err, "%s request failed", c.service)}
	}
	defer resp.Body.Close()

	payload, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &pipeline.TransientError{Err: errors.Wrapf(err, "failed to read %s response", c.service)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.classifyStatus(resp.StatusCode, payload)
	}
	return payload, nil
}

// classifyStatus maps an HTTP error status onto the error taxonomy:
// credential rejections are batch-fatal, rate limits and server faults are
// transient, the rest is permanent.
func (c *restClient) classifyStatus(status int, body []byte) error {
	detail := errors.Errorf("%s returned status %d: %s", c.service, status, truncateBody(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &pipeline.AuthorizationError{Service: c.service, Err: detail}
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return &pipeline.TransientError{Err: detail}
	default:
		return detail
	}
}

func truncateBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
