package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
)

// URLResolver knows where the results of a task can be downloaded.
type URLResolver interface {
	DownloadURL(id model.TaskID) string
}

// ServiceConfig is the configuration for the download service.
type ServiceConfig struct {
	Client     URLResolver
	HTTPClient *http.Client
	// UserAgent is sent on the download request.
	UserAgent string
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}

	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}

	if c.UserAgent == "" {
		c.UserAgent = "agx/dev"
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service downloads the results CSV of a task.
type Service struct {
	client     URLResolver
	httpClient *http.Client
	userAgent  string
	logger     log.Logger
}

// NewService creates a new download service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		client:     cfg.Client,
		httpClient: cfg.HTTPClient,
		userAgent:  cfg.UserAgent,
		logger:     cfg.Logger,
	}, nil
}

// Request represents the download request parameters.
type Request struct {
	TaskID model.TaskID
	// Dst receives the downloaded CSV.
	Dst io.Writer
	// Progress is optional, when set the download progress is written to it.
	Progress io.Writer
}

// Response is the result of a download.
type Response struct {
	URL   string
	Bytes int64
}

// Run downloads the task results into the request destination.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.TaskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}
	if req.Dst == nil {
		return nil, fmt.Errorf("destination is required: %w", model.ErrNotValid)
	}

	url := s.client.DownloadURL(req.TaskID)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("task %s results can't be downloaded from %q: %w", req.TaskID, url, model.ErrNotValid)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	httpReq.Header.Set("User-Agent", s.userAgent)
	httpReq.Header.Set("Accept", "text/csv")

	s.logger.Debugf("downloading task %s results from %s", req.TaskID, url)
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("could not download %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("task %s results: %w", req.TaskID, model.ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("task %s has not finished: %w", req.TaskID, model.ErrNotValid)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("could not download %s: unexpected status %d", url, resp.StatusCode)
	}

	dst := req.Dst
	var pw *progressWriter
	if req.Progress != nil {
		pw = newProgressWriter(req.Dst, req.Progress, resp.ContentLength)
		dst = pw
	}

	n, err := io.Copy(dst, resp.Body)
	if pw != nil {
		pw.finish()
	}
	if err != nil {
		return nil, fmt.Errorf("could not write %s results: %w", req.TaskID, err)
	}

	s.logger.Infof("Downloaded task %s results (%d bytes)", req.TaskID, n)
	return &Response{URL: url, Bytes: n}, nil
}
