package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/space-operator/spo-go/pkg/api"
	"github.com/space-operator/spo-go/pkg/credential"
	"github.com/space-operator/spo-go/pkg/log"
	"github.com/space-operator/spo-go/pkg/value"
)

// Client calls the service's HTTP endpoints. Calls that act on behalf of a
// user fetch their token from the credential provider
type Client struct {
	httpClient *http.Client
	creds      credential.Provider
	baseURL    string
}

type authMode int

const (
	authNone authMode = iota
	authToken
)

var (
	ErrRequest = errors.New("request failed")
	ErrServer  = errors.New("server returned error")
)

const (
	routeStartFlow           = "/flow/start/%d"
	routeStartFlowShared     = "/flow/start_shared/%d"
	routeStartFlowUnverified = "/flow/start_unverified/%d"
	routeStopFlow            = "/flow/stop/%s"
	routeFlowOutput          = "/flow/output/%s"
	routeSubmitSignature     = "/signature/submit"

	headerAuthorization = "authorization"
)

// NewClient creates a Client for baseURL. A nil provider behaves as if no
// token is available
func NewClient(
	baseURL string, timeout time.Duration, creds credential.Provider,
) *Client {
	if creds == nil {
		creds = credential.Static("")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StartFlow starts a flow owned by the authenticated user
func (c *Client) StartFlow(
	ctx context.Context, flowID api.FlowID, params api.StartFlowParams,
) (*api.StartFlowOutput, error) {
	var res api.StartFlowOutput
	err := c.post(ctx, authToken, c.url(routeStartFlow, flowID), params, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// StartFlowShared starts a flow another user has shared
func (c *Client) StartFlowShared(
	ctx context.Context, flowID api.FlowID, params api.StartFlowSharedParams,
) (*api.StartFlowSharedOutput, error) {
	var res api.StartFlowSharedOutput
	err := c.post(ctx, authToken,
		c.url(routeStartFlowShared, flowID), params, &res,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// StartFlowUnverified starts a public flow on behalf of pubkey without a
// user token. The returned token grants access to the run's events
func (c *Client) StartFlowUnverified(
	ctx context.Context, flowID api.FlowID, pubkey value.PublicKey,
	params api.StartFlowUnverifiedParams,
) (*api.StartFlowUnverifiedOutput, error) {
	var res api.StartFlowUnverifiedOutput
	err := c.send(ctx, http.MethodPost,
		c.url(routeStartFlowUnverified, flowID), pubkey.String(), params, &res,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// StopFlow asks the service to halt a run
func (c *Client) StopFlow(
	ctx context.Context, runID api.FlowRunID, params api.StopFlowParams,
) (*api.StopFlowOutput, error) {
	var res api.StopFlowOutput
	err := c.post(ctx, authToken,
		c.url(routeStopFlow, escapeRun(runID)), params, &res,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetFlowOutput fetches the final output of a finished run
func (c *Client) GetFlowOutput(
	ctx context.Context, runID api.FlowRunID,
) (value.Value, error) {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return value.Value{}, err
	}
	var res value.Value
	err = c.send(ctx, http.MethodGet,
		c.url(routeFlowOutput, escapeRun(runID)), token, nil, &res,
	)
	if err != nil {
		return value.Value{}, err
	}
	return res, nil
}

// SubmitSignature reports a signature for a pending signature request
func (c *Client) SubmitSignature(
	ctx context.Context, params api.SubmitSignatureParams,
) (*api.SubmitSignatureOutput, error) {
	var res api.SubmitSignatureOutput
	err := c.post(ctx, authNone, c.url(routeSubmitSignature), params, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) post(
	ctx context.Context, mode authMode, url string, body, dst any,
) error {
	var auth string
	if mode == authToken {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return err
		}
		auth = token
	}
	return c.send(ctx, http.MethodPost, url, auth, body, dst)
}

func (c *Client) send(
	ctx context.Context, method, url, auth string, body, dst any,
) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth != "" {
		req.Header.Set(headerAuthorization, auth)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("HTTP request failed",
			slog.String("url", url),
			slog.Duration("duration", time.Since(start)),
			log.Error(err))
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}

	var errResp api.ErrorResponse
	if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("%w: %s", ErrServer, errResp.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s",
			ErrRequest, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	return nil
}

func (c *Client) url(format string, args ...any) string {
	path := fmt.Sprintf(format, args...)
	return c.baseURL + path
}

func escapeRun(runID api.FlowRunID) string {
	return url.PathEscape(string(runID))
}
