package rest_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/taskclient"
	"github.com/agenciai/agx/internal/taskclient/rest"
)

func newTestClient(t *testing.T, h http.Handler) *rest.Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := rest.NewClient(rest.ClientConfig{BaseURL: srv.URL + "/", UserAgent: "agx/test"})
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	tests := map[string]struct {
		cfg    rest.ClientConfig
		expErr bool
	}{
		"Empty config should use the defaults.": {
			cfg: rest.ClientConfig{},
		},
		"A base URL without scheme should fail.": {
			cfg:    rest.ClientConfig{BaseURL: "localhost:8005"},
			expErr: true,
		},
		"A base URL with a non HTTP scheme should fail.": {
			cfg:    rest.ClientConfig{BaseURL: "ftp://localhost"},
			expErr: true,
		},
		"A negative timeout should fail.": {
			cfg:    rest.ClientConfig{RequestTimeout: -1},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := rest.NewClient(test.cfg)
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, c)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, c)
			}
		})
	}
}

func TestClientSubmit(t *testing.T) {
	tests := map[string]struct {
		upload    taskclient.Upload
		handler   func(t *testing.T) http.HandlerFunc
		expTaskID model.TaskID
		expErr    error
	}{
		"A file should be uploaded as multipart and return the task.": {
			upload: taskclient.Upload{Name: "/tmp/data/providers.csv", Content: strings.NewReader("npi,first_name\n1,John\n")},
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, http.MethodPost, r.Method)
					assert.Equal(t, "/upload", r.URL.Path)
					assert.Equal(t, "agx/test", r.Header.Get("User-Agent"))
					_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
					assert.NoError(t, err)

					f, fh, err := r.FormFile("file")
					require.NoError(t, err)
					defer f.Close()
					data, _ := io.ReadAll(f)
					assert.Equal(t, "providers.csv", fh.Filename)
					assert.Equal(t, "npi,first_name\n1,John\n", string(data))

					_ = json.NewEncoder(w).Encode(map[string]string{"message": "Upload successful", "task_id": "abc-123", "type": "csv"})
				}
			},
			expTaskID: "abc-123",
		},
		"A rejected upload should fail with an upload error.": {
			upload: taskclient.Upload{Name: "notes.txt", Content: strings.NewReader("x")},
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadRequest)
					_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Unsupported file type"})
				}
			},
			expErr: model.ErrUpload,
		},
		"A response without task should fail with an upload error.": {
			upload: taskclient.Upload{Name: "providers.csv", Content: strings.NewReader("x")},
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					_ = json.NewEncoder(w).Encode(map[string]string{"message": "Upload successful"})
				}
			},
			expErr: model.ErrUpload,
		},
		"An upload without name should fail before sending.": {
			upload: taskclient.Upload{Name: "", Content: strings.NewReader("x")},
			handler: func(t *testing.T) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					t.Errorf("no request expected")
				}
			},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, test.handler(t))

			id, err := c.Submit(context.Background(), test.upload)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			} else if assert.NoError(t, err) {
				assert.Equal(t, test.expTaskID, id)
			}
		})
	}
}

func TestClientFetchStatus(t *testing.T) {
	const successResult = `{
		"processed": 2,
		"data": [
			{"record": {"npi": "1234567890", "first_name": "John", "last_name": "Smith"}, "validation_status": "Valid", "confidence_score": 1.0, "issues": [], "api_data": {}, "website_validation": {"valid": true}, "enriched": {"specialty": "Cardiology"}},
			{"record": {"npi": "1", "first_name": "Jane", "last_name": "Doe"}, "validation_status": "Needs Review", "confidence_score": -0.1, "issues": ["Invalid NPI or API Error"], "api_data": {}, "website_validation": {}, "enriched": {}}
		],
		"report": {"timestamp": "2026-10-18T10:00:00", "total_processed": 2, "valid_providers": 1, "flagged_providers": 1, "accuracy_rate": 0.95,
			"action_items": [{"provider": "Jane Doe", "issues": ["Invalid NPI or API Error"], "priority": "High"}]}
	}`

	tests := map[string]struct {
		body      string
		status    int
		expStatus *model.RawStatus
		expErr    error
	}{
		"A pending task should not have progress.": {
			body:      `{"task_id": "t1", "status": "PENDING", "result": null}`,
			expStatus: &model.RawStatus{TaskID: "t1", State: model.TaskStatePending},
		},
		"A started task should have the step.": {
			body: `{"task_id": "t1", "status": "STARTED", "result": {"step": "Initializing Agents"}}`,
			expStatus: &model.RawStatus{TaskID: "t1", State: model.TaskStateStarted,
				Progress: &model.Progress{Step: "Initializing Agents"}},
		},
		"A validating task should have the record detail.": {
			body: `{"task_id": "t1", "status": "PROGRESS", "result": {"step": "Validating Provider", "current": 2, "total": 5, "provider": "John Smith"}}`,
			expStatus: &model.RawStatus{TaskID: "t1", State: model.TaskStateProgress,
				Progress: &model.Progress{Step: "Validating Provider", Detail: &model.RecordDetail{Identifier: "John Smith", Current: 2, Total: 5}}},
		},
		"Missing name parts should be dropped from the identifier.": {
			body: `{"task_id": "t1", "status": "PROGRESS", "result": {"step": "Validating Provider", "current": 1, "total": 1, "provider": "None None"}}`,
			expStatus: &model.RawStatus{TaskID: "t1", State: model.TaskStateProgress,
				Progress: &model.Progress{Step: "Validating Provider", Detail: &model.RecordDetail{Current: 1, Total: 1}}},
		},
		"The record details should be used when there is no provider.": {
			body: `{"task_id": "t1", "status": "PROGRESS", "result": {"step": "Validating Provider", "details": {"first_name": "Ana", "last_name": "Ruiz"}}}`,
			expStatus: &model.RawStatus{TaskID: "t1", State: model.TaskStateProgress,
				Progress: &model.Progress{Step: "Validating Provider", Detail: &model.RecordDetail{Identifier: "Ana Ruiz"}}},
		},
		"A failed task should have the reason.": {
			body:      `{"task_id": "t1", "status": "FAILURE", "result": {"exc_type": "ValueError", "exc_message": ["bad csv"]}}`,
			expStatus: &model.RawStatus{TaskID: "t1", State: model.TaskStateFailure, Error: "bad csv"},
		},
		"A failed task with a plain reason should have the reason.": {
			body:      `{"task_id": "t1", "status": "FAILURE", "result": "redis is down"}`,
			expStatus: &model.RawStatus{TaskID: "t1", State: model.TaskStateFailure, Error: "redis is down"},
		},
		"A successful task should have the decoded result.": {
			body: `{"task_id": "t1", "status": "SUCCESS", "result": ` + successResult + `}`,
			expStatus: &model.RawStatus{TaskID: "t1", State: model.TaskStateSuccess, Result: &model.Result{
				Processed: 2,
				Rows: []model.ResultRow{
					{
						Record:          map[string]any{"npi": "1234567890", "first_name": "John", "last_name": "Smith"},
						Status:          model.ValidationStatusValid,
						ConfidenceScore: 1,
						Issues:          []string{},
						Enrichment:      map[string]any{"specialty": "Cardiology"},
						WebsiteCheck:    &model.WebsiteCheck{Valid: true},
					},
					{
						Record:          map[string]any{"npi": "1", "first_name": "Jane", "last_name": "Doe"},
						Status:          model.ValidationStatusFlagged,
						ConfidenceScore: 0,
						Issues:          []string{"Invalid NPI or API Error"},
					},
				},
				Report: model.ServerReport{
					GeneratedAt:      "2026-10-18T10:00:00",
					TotalProcessed:   2,
					ValidProviders:   1,
					FlaggedProviders: 1,
					AccuracyRate:     0.95,
					ActionItems:      []model.ActionItem{{Provider: "Jane Doe", Issues: []string{"Invalid NPI or API Error"}, Priority: "High"}},
				},
			}},
		},
		"A successful task with an invalid result should be a failure.": {
			body:      `{"task_id": "t1", "status": "SUCCESS", "result": {"processed": "many", "data": []}}`,
			expStatus: &model.RawStatus{TaskID: "t1", State: model.TaskStateFailure, Error: rest.InvalidResultReason},
		},
		"A successful task without result should be a failure.": {
			body:      `{"task_id": "t1", "status": "SUCCESS", "result": null}`,
			expStatus: &model.RawStatus{TaskID: "t1", State: model.TaskStateFailure, Error: rest.InvalidResultReason},
		},
		"A server error should be a transport error.": {
			status: http.StatusInternalServerError,
			body:   `{"detail": "boom"}`,
			expErr: model.ErrTransport,
		},
		"A malformed response should be a transport error.": {
			body:   `{"task_id": `,
			expErr: model.ErrTransport,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/task/t1", r.URL.Path)
				if test.status != 0 {
					w.WriteHeader(test.status)
				}
				_, _ = w.Write([]byte(test.body))
			}))

			got, err := c.FetchStatus(context.Background(), "t1")
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				assert.Nil(t, got)
			} else if assert.NoError(t, err) {
				assert.Equal(t, test.expStatus, got)
			}
		})
	}
}

func TestClientFetchStatusTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := rest.NewClient(rest.ClientConfig{BaseURL: url})
	require.NoError(t, err)

	_, err = c.FetchStatus(context.Background(), "t1")
	assert.ErrorIs(t, err, model.ErrTransport)
}

func TestClientSendChat(t *testing.T) {
	t.Run("A chat message should be sent with the task.", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, map[string]string{"task_id": "t1", "message": "How many flagged?"}, req)

			_ = json.NewEncoder(w).Encode(map[string]string{"response": "1 provider was flagged."})
		}))

		resp, err := c.SendChat(context.Background(), "t1", "How many flagged?")
		require.NoError(t, err)
		assert.Equal(t, "1 provider was flagged.", resp)
	})

	t.Run("A chat failure should be a chat error.", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		_, err := c.SendChat(context.Background(), "t1", "hi")
		assert.ErrorIs(t, err, model.ErrChat)
	})
}

func TestClientDownloadURL(t *testing.T) {
	c, err := rest.NewClient(rest.ClientConfig{BaseURL: "http://api.example.com:8005/"})
	require.NoError(t, err)

	assert.Equal(t, "http://api.example.com:8005/download/abc-123", c.DownloadURL("abc-123"))
}
