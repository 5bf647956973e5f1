package lib_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenciai/agx/pkg/lib"
)

const providersCSV = `npi,first_name,last_name,website
1234567893,John,Smith,https://smith.example.com
1245319599,Jane,,
`

func newTestClient(t *testing.T) *lib.Client {
	t.Helper()

	client, err := lib.New(context.Background(), lib.Config{
		Client:       lib.ClientFake,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg    lib.Config
		expErr error
	}{
		"A fake client should work.": {
			cfg: lib.Config{Client: lib.ClientFake},
		},

		"An HTTP client with a custom DB should work.": {
			cfg: lib.Config{APIURL: "http://127.0.0.1:8005"},
		},

		"An unknown client type should fail.": {
			cfg:    lib.Config{Client: "grpc"},
			expErr: lib.ErrNotValid,
		},

		"A non HTTP API URL should fail.": {
			cfg:    lib.Config{APIURL: "ftp://127.0.0.1"},
			expErr: lib.ErrNotValid,
		},

		"A negative poll interval should fail.": {
			cfg:    lib.Config{Client: lib.ClientFake, PollInterval: -time.Second},
			expErr: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if test.cfg.Client != lib.ClientFake {
				test.cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
			}

			client, err := lib.New(context.Background(), test.cfg)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, client.Close())
		})
	}
}

func TestRun(t *testing.T) {
	require := require.New(t)
	client := newTestClient(t)

	var mu sync.Mutex
	var events []lib.Event
	res, err := client.Run(context.Background(), lib.RunOpts{
		FileName: "providers.csv",
		Content:  strings.NewReader(providersCSV),
		OnEvent: func(ev lib.Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		},
	})
	require.NoError(err)

	require.Equal(lib.TaskStateSuccess, res.State)
	require.Equal(lib.StageDone, res.Stage)
	require.NotNil(res.Report)
	assert.Equal(t, 2, res.Report.TotalProcessed)
	assert.Equal(t, 1, res.Report.ValidCount)
	assert.Equal(t, 1, res.Report.FlaggedCount)
	assert.Equal(t, 0.95, res.Report.AccuracyRate)
	require.Len(res.Rows, 2)
	assert.Equal(t, lib.ValidationStatusValid, res.Rows[0].Status)
	require.NotNil(res.Rows[0].WebsiteValid)
	assert.True(t, *res.Rows[0].WebsiteValid)
	assert.Nil(t, res.Rows[1].WebsiteValid)

	// The log is newest first.
	require.NotEmpty(res.Log)
	assert.Equal(t, "Pipeline finished successfully.", res.Log[0].Message)
	assert.Equal(t, "Upload successful. Orchestrator received task.", res.Log[len(res.Log)-1].Message)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(events)
	last := events[len(events)-1]
	assert.True(t, last.Terminal)
	assert.Equal(t, res.TaskID, last.TaskID)

	// Stages never go backwards.
	order := map[lib.Stage]int{
		lib.StageIdle: 0, lib.StageValidating: 1, lib.StageEnriching: 2,
		lib.StageQualityCheck: 3, lib.StageDirectory: 4, lib.StageDone: 5,
	}
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, order[events[i].Stage], order[events[i-1].Stage])
	}
}

func TestRunFailure(t *testing.T) {
	client := newTestClient(t)

	res, err := client.Run(context.Background(), lib.RunOpts{
		FileName: "things.csv",
		Content:  strings.NewReader("color,size\nred,10\n"),
	})
	assert.ErrorIs(t, err, lib.ErrPipelineFailure)
	require.NotNil(t, res)
	assert.Equal(t, lib.TaskStateFailure, res.State)
	assert.Equal(t, "could not map CSV columns", res.FailureReason)
	assert.Nil(t, res.Report)
}

func TestRunInvalid(t *testing.T) {
	tests := map[string]struct {
		opts   lib.RunOpts
		expErr error
	}{
		"Running without file nor task should fail.": {
			opts:   lib.RunOpts{},
			expErr: lib.ErrNotValid,
		},

		"Running a file without name should fail.": {
			opts:   lib.RunOpts{Content: strings.NewReader(providersCSV)},
			expErr: lib.ErrNotValid,
		},

		"Running an unsupported file should fail.": {
			opts:   lib.RunOpts{FileName: "notes.txt", Content: strings.NewReader("hello")},
			expErr: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t)
			_, err := client.Run(context.Background(), test.opts)
			assert.ErrorIs(t, err, test.expErr)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	client, err := lib.New(context.Background(), lib.Config{
		Client:       lib.ClientFake,
		PollInterval: time.Hour,
	})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Run(ctx, lib.RunOpts{FileName: "providers.csv", Content: strings.NewReader(providersCSV)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsk(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Ask(context.Background(), "hello?")
	assert.ErrorIs(t, err, lib.ErrNotValid)

	_, err = client.Run(context.Background(), lib.RunOpts{FileName: "providers.csv", Content: strings.NewReader(providersCSV)})
	require.NoError(t, err)

	_, err = client.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, lib.ErrNotValid)

	answer, err := client.Ask(context.Background(), "How many are valid?")
	require.NoError(t, err)
	assert.Equal(t, "1 of 2 providers are valid.", answer)

	assert.Equal(t, []lib.ChatMessage{
		{FromUser: true, Text: "How many are valid?"},
		{FromUser: false, Text: "1 of 2 providers are valid."},
	}, client.Conversation())

	// A new run drops the previous conversation.
	_, err = client.Run(context.Background(), lib.RunOpts{FileName: "providers.csv", Content: strings.NewReader(providersCSV)})
	require.NoError(t, err)
	assert.Empty(t, client.Conversation())
}

func TestStatus(t *testing.T) {
	client := newTestClient(t)

	res, err := client.Run(context.Background(), lib.RunOpts{FileName: "providers.csv", Content: strings.NewReader(providersCSV)})
	require.NoError(t, err)

	st, err := client.Status(context.Background(), res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, lib.TaskStateSuccess, st.State)
	assert.Equal(t, lib.StageDone, st.Stage)
	require.NotNil(t, st.Report)
	assert.Equal(t, 2, st.Report.TotalProcessed)

	_, err = client.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, lib.ErrNotFound)

	_, err = client.Status(context.Background(), "")
	assert.ErrorIs(t, err, lib.ErrNotValid)
}

func TestHistory(t *testing.T) {
	client := newTestClient(t)

	recs, err := client.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	ok, err := client.Run(context.Background(), lib.RunOpts{FileName: "providers.csv", Content: strings.NewReader(providersCSV)})
	require.NoError(t, err)
	failed, _ := client.Run(context.Background(), lib.RunOpts{FileName: "things.csv", Content: strings.NewReader("color\nred\n")})
	require.NotNil(t, failed)

	recs, err = client.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byID := map[string]lib.TaskRecord{}
	for _, r := range recs {
		byID[r.TaskID] = r
	}

	okRec := byID[ok.TaskID]
	assert.Equal(t, "providers.csv", okRec.FileName)
	assert.Equal(t, lib.TaskStateSuccess, okRec.State)
	assert.Equal(t, lib.StageDone, okRec.Stage)
	assert.NotNil(t, okRec.FinishedAt)
	require.NotNil(t, okRec.Report)
	assert.Equal(t, 1, okRec.Report.ValidCount)

	failedRec := byID[failed.TaskID]
	assert.Equal(t, lib.TaskStateFailure, failedRec.State)
	assert.Equal(t, "could not map CSV columns", failedRec.FailureReason)
	assert.Nil(t, failedRec.Report)

	recs, err = client.History(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestDownloadURL(t *testing.T) {
	client, err := lib.New(context.Background(), lib.Config{
		APIURL: "http://127.0.0.1:8005/",
		DBPath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "http://127.0.0.1:8005/download/task-1", client.DownloadURL("task-1"))
}
