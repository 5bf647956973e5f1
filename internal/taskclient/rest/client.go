// Package rest implements the task client over the pipeline service HTTP API.
package rest

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/taskclient"
)

const (
	// DefaultBaseURL is the address of a locally running pipeline service.
	DefaultBaseURL = "http://localhost:8005"
	// DefaultRequestTimeout is the max time a single request can take.
	DefaultRequestTimeout = 30 * time.Second

	// InvalidResultReason is the failure reason of successful tasks whose result is malformed.
	InvalidResultReason = "invalid result payload"

	headerRequestID = "X-Request-ID"
)

//go:embed result.schema.json
var resultSchemaJSON []byte

// ClientConfig is the configuration of the HTTP task client.
type ClientConfig struct {
	// BaseURL is the root URL of the pipeline service.
	BaseURL string
	// HTTPClient is the client used for the requests.
	HTTPClient *http.Client
	// RequestTimeout is applied to every request unless the HTTP client already has one.
	RequestTimeout time.Duration
	// UserAgent is sent on every request (e.g. agx/v0.1.0).
	UserAgent string
	Logger    log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base url host is required")
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout can't be negative")
	}

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.RequestTimeout}
	}

	if c.UserAgent == "" {
		c.UserAgent = "agx/dev"
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "rest.Client"})

	return nil
}

// Client is the pipeline service HTTP client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	userAgent    string
	resultSchema *gojsonschema.Schema
	logger       log.Logger
}

var _ taskclient.Client = &Client{}

// NewClient returns a new HTTP task client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(resultSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("could not load result schema: %w", err)
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		httpClient:   cfg.HTTPClient,
		userAgent:    cfg.UserAgent,
		resultSchema: schema,
		logger:       cfg.Logger,
	}, nil
}

// Submit uploads the file as the multipart "file" field and returns the created task.
func (c *Client) Submit(ctx context.Context, u taskclient.Upload) (model.TaskID, error) {
	name := path.Base(strings.ReplaceAll(u.Name, `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("file name is required: %w", model.ErrNotValid)
	}
	if u.Content == nil {
		return "", fmt.Errorf("file content is required: %w", model.ErrNotValid)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("could not create form file: %w", err)
	}
	if _, err := io.Copy(fw, u.Content); err != nil {
		return "", fmt.Errorf("could not read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("could not close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUpload, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUpload, err)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("%w: response is missing the task id", model.ErrUpload)
	}

	c.logger.Infof("File %s uploaded as task %s", name, resp.TaskID)
	return model.TaskID(resp.TaskID), nil
}

// FetchStatus returns the current status of the task.
func (c *Client) FetchStatus(ctx context.Context, id model.TaskID) (*model.RawStatus, error) {
	if id == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/task/"+url.PathEscape(string(id)), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}

	var resp statusResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}

	raw, err := c.toRawStatus(id, resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}

	return raw, nil
}

// SendChat asks a question about the task and returns the answer.
func (c *Client) SendChat(ctx context.Context, id model.TaskID, text string) (string, error) {
	body, err := json.Marshal(chatRequest{TaskID: string(id), Message: text})
	if err != nil {
		return "", fmt.Errorf("%w: could not marshal request: %w", model.ErrChat, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrChat, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp chatResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrChat, err)
	}

	return resp.Response, nil
}

// DownloadURL returns the URL of the task results CSV.
func (c *Client) DownloadURL(id model.TaskID) string {
	return c.baseURL + "/download/" + url.PathEscape(string(id))
}

func (c *Client) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	logger := c.logger.WithValues(log.Kv{"request-id": req.Header.Get(headerRequestID)})
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	logger.Debugf("%s %s -> %d (%s)", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, statusError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode %s response: %w", req.URL.Path, err)
	}

	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var e errorResponse
	if json.Unmarshal(data, &e) == nil && e.message() != "" {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, e.message())
	}

	if msg := strings.TrimSpace(string(data)); msg != "" {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}

	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}

func (c *Client) toRawStatus(id model.TaskID, resp statusResponse) (*model.RawStatus, error) {
	raw := &model.RawStatus{
		TaskID: id,
		State:  model.ParseTaskState(resp.Status),
	}
	if resp.TaskID != "" {
		raw.TaskID = model.TaskID(resp.TaskID)
	}

	switch {
	case raw.State == model.TaskStateSuccess:
		result, err := c.decodeResult(resp.Result)
		if err != nil {
			c.logger.Warningf("Task %s succeeded with an invalid result: %s", id, err)
			raw.State = model.TaskStateFailure
			raw.Error = InvalidResultReason
			return raw, nil
		}
		raw.Result = result

	case raw.State == model.TaskStateFailure:
		raw.Error = failureReason(resp.Result)

	case raw.State.IsRunning():
		p, err := decodeProgress(resp.Result)
		if err != nil {
			return nil, fmt.Errorf("could not decode task progress: %w", err)
		}
		raw.Progress = p
	}

	return raw, nil
}

func (c *Client) decodeResult(data json.RawMessage) (*model.Result, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, fmt.Errorf("result is missing")
	}

	res, err := c.resultSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("could not validate result: %w", err)
	}
	if !res.Valid() {
		var errs []string
		for _, desc := range res.Errors() {
			errs = append(errs, desc.String())
		}
		return nil, fmt.Errorf("result validation failed: %v", errs)
	}

	var r resultJSON
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("could not decode result: %w", err)
	}

	return r.toModel(), nil
}
