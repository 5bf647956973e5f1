package download_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenciai/agx/internal/app/download"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/taskclient/rest"
	"github.com/agenciai/agx/internal/taskclient/taskclientmock"
)

func TestServiceRun(t *testing.T) {
	const csvData = "npi,first_name\n1234567893,John\n"

	tests := map[string]struct {
		taskID   model.TaskID
		handler  http.HandlerFunc
		progress bool
		expData  string
		expErr   error
	}{
		"a finished task results should be downloaded": {
			taskID: "task-1",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/download/task-1", r.URL.Path)
				assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
				w.Header().Set("Content-Type", "text/csv")
				_, _ = w.Write([]byte(csvData))
			},
			progress: true,
			expData:  csvData,
		},
		"a missing task should fail with not found": {
			taskID: "task-1",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			expErr: model.ErrNotFound,
		},
		"a running task should fail with not valid": {
			taskID: "task-1",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
			},
			expErr: model.ErrNotValid,
		},
		"a missing task id should fail": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				t.Errorf("no request expected")
			},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			srv := httptest.NewServer(test.handler)
			defer srv.Close()

			client, err := rest.NewClient(rest.ClientConfig{BaseURL: srv.URL})
			require.NoError(err)
			svc, err := download.NewService(download.ServiceConfig{Client: client})
			require.NoError(err)

			var dst, progress bytes.Buffer
			req := download.Request{TaskID: test.taskID, Dst: &dst}
			if test.progress {
				req.Progress = &progress
			}

			resp, err := svc.Run(context.Background(), req)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}

			require.NoError(err)
			assert.Equal(t, test.expData, dst.String())
			assert.Equal(t, int64(len(test.expData)), resp.Bytes)
			assert.Contains(t, progress.String(), "100%")
		})
	}
}

func TestServiceRunNonHTTPLocation(t *testing.T) {
	mc := taskclientmock.NewClient(t)
	mc.On("DownloadURL", model.TaskID("task-1")).Once().Return("memory://download/task-1")

	svc, err := download.NewService(download.ServiceConfig{Client: mc})
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), download.Request{TaskID: "task-1", Dst: &bytes.Buffer{}})
	assert.ErrorIs(t, err, model.ErrNotValid)
}
