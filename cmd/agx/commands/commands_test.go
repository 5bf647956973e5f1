package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenciai/agx/internal/config"
	"github.com/agenciai/agx/internal/log"
	loglogrus "github.com/agenciai/agx/internal/log/logrus"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/storage/sqlite"
)

func TestRootCommandConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("api_url: http://file:8005\npoll_interval: 3s\n"), 0o600))

	tests := map[string]struct {
		root      RootCommand
		expConfig func() config.Config
		expErr    bool
	}{
		"A missing default config file should use the defaults.": {
			root:      RootCommand{ConfigPath: filepath.Join(dir, "missing.yaml")},
			expConfig: config.Default,
		},
		"A missing explicit config file should fail.": {
			root:   RootCommand{ConfigPath: filepath.Join(dir, "missing.yaml"), ConfigSet: true},
			expErr: true,
		},
		"The config file should override the defaults.": {
			root: RootCommand{ConfigPath: cfgPath},
			expConfig: func() config.Config {
				c := config.Default()
				c.APIURL = "http://file:8005"
				c.PollInterval = 3 * time.Second
				return c
			},
		},
		"Flags should override the config file.": {
			root: RootCommand{ConfigPath: cfgPath, APIURL: "http://flag:8005", PollInterval: time.Second},
			expConfig: func() config.Config {
				c := config.Default()
				c.APIURL = "http://flag:8005"
				c.PollInterval = time.Second
				return c
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := test.root.Config(context.Background())
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expConfig(), got)
		})
	}
}

func TestRunCommandWithFakeClient(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "providers.csv")
	csv := "npi,first_name,last_name\n1234567893,John,Smith\n1245319599,Jane,\n"
	require.NoError(t, os.WriteFile(file, []byte(csv), 0o600))

	var stdout bytes.Buffer
	root := &RootCommand{
		ConfigPath:   filepath.Join(dir, "missing.yaml"),
		ClientType:   ClientTypeFake,
		PollInterval: time.Millisecond,
		Stdin:        strings.NewReader("\nhow many are flagged?\nexit\nignored\n"),
		Stdout:       &stdout,
		Stderr:       &bytes.Buffer{},
		Logger:       log.Noop,
	}
	cmd := RunCommand{rootCmd: root, file: file, chat: true, format: formatTable}

	err := cmd.Run(context.Background())
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "[System] Upload successful. Orchestrator received task.")
	assert.Contains(t, out, "[Orchestrator] Validating Provider")
	assert.Contains(t, out, "[Validation Agent] Processing Jane...")
	assert.Contains(t, out, "[Orchestrator] Pipeline finished successfully.")
	assert.Contains(t, out, "Accuracy:   95.0%")
	assert.Contains(t, out, "agent> Hello! I am your Data Assistant.")
	assert.Contains(t, out, "agent> 1 of 2 providers were flagged for review. Needing action: Jane.")
	assert.Equal(t, 2, strings.Count(out, "agent>"))
}

func TestRunCommandFailedPipeline(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "things.csv")
	require.NoError(t, os.WriteFile(file, []byte("color,size\nred,10\n"), 0o600))

	var stdout bytes.Buffer
	root := &RootCommand{
		ConfigPath:   filepath.Join(dir, "missing.yaml"),
		ClientType:   ClientTypeFake,
		PollInterval: time.Millisecond,
		Stdout:       &stdout,
		Logger:       log.Noop,
	}
	cmd := RunCommand{rootCmd: root, file: file, format: formatTable}

	err := cmd.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPipelineFailure)
	assert.Contains(t, err.Error(), "could not map CSV columns")
	assert.Contains(t, stdout.String(), "Pipeline failed: could not map CSV columns")
}

// failFirstWriter fails only the first write.
type failFirstWriter struct {
	bytes.Buffer
	failed bool
}

func (w *failFirstWriter) Write(p []byte) (int, error) {
	if !w.failed {
		w.failed = true
		return 0, errors.New("broken pipe")
	}
	return w.Buffer.Write(p)
}

func TestRunCommandLogsReceivedTaskPrintErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "providers.csv")
	require.NoError(t, os.WriteFile(file, []byte("npi,first_name,last_name\n1234567893,John,Smith\n"), 0o600))

	l, hook := logrustest.NewNullLogger()
	stdout := &failFirstWriter{}
	root := &RootCommand{
		ConfigPath:   filepath.Join(dir, "missing.yaml"),
		ClientType:   ClientTypeFake,
		PollInterval: time.Millisecond,
		Stdout:       stdout,
		Logger:       loglogrus.NewLogrus(logrus.NewEntry(l)),
	}
	cmd := RunCommand{rootCmd: root, file: file, format: formatJSON}

	err := cmd.Run(context.Background())
	require.NoError(t, err)

	var warnings []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings = append(warnings, e.Message)
		}
	}
	assert.Equal(t, []string{"Could not print activity: broken pipe"}, warnings)
	assert.NotContains(t, stdout.String(), "Upload successful")
	assert.Contains(t, stdout.String(), "Pipeline finished successfully.")
}

func TestRootCommandResolveTaskID(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "agx.db")
	root := &RootCommand{ClientType: ClientTypeHTTP, DBPath: dbPath, Logger: log.Noop}

	// Explicit ids are used as is.
	id, err := root.resolveTaskID(ctx, "task-9")
	require.NoError(t, err)
	assert.Equal(t, model.TaskID("task-9"), id)

	// Without history there is no last task.
	_, err = root.resolveTaskID(ctx, "last")
	assert.ErrorIs(t, err, model.ErrNotFound)

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: dbPath})
	require.NoError(t, err)
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateTask(ctx, model.TaskRecord{ID: "task-1", State: model.TaskStatePending, SubmittedAt: now}))
	require.NoError(t, repo.CreateTask(ctx, model.TaskRecord{ID: "task-2", State: model.TaskStatePending, SubmittedAt: now.Add(time.Second)}))
	require.NoError(t, repo.Close())

	id, err = root.resolveTaskID(ctx, "last")
	require.NoError(t, err)
	assert.Equal(t, model.TaskID("task-2"), id)
}
