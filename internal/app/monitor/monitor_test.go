package monitor_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agenciai/agx/internal/app/monitor"
	"github.com/agenciai/agx/internal/chat"
	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/session"
	"github.com/agenciai/agx/internal/storage/memory"
	"github.com/agenciai/agx/internal/taskclient"
	"github.com/agenciai/agx/internal/taskclient/fake"
	"github.com/agenciai/agx/internal/taskclient/taskclientmock"
)

func newSession(t *testing.T, scoped ...session.TaskScoped) *session.Session {
	t.Helper()

	s, err := session.New(session.Config{TaskScoped: scoped})
	require.NoError(t, err)
	return s
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config func(t *testing.T) monitor.ServiceConfig
		expErr bool
	}{
		"valid config should create service": {
			config: func(t *testing.T) monitor.ServiceConfig {
				return monitor.ServiceConfig{Client: &taskclientmock.Client{}, Session: newSession(t), Logger: log.Noop}
			},
		},
		"missing client should fail": {
			config: func(t *testing.T) monitor.ServiceConfig {
				return monitor.ServiceConfig{Session: newSession(t)}
			},
			expErr: true,
		},
		"missing session should fail": {
			config: func(t *testing.T) monitor.ServiceConfig {
				return monitor.ServiceConfig{Client: &taskclientmock.Client{}}
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := monitor.NewService(test.config(t))
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	upload := &taskclient.Upload{Name: "providers.csv", Content: strings.NewReader("npi\n1\n")}

	tests := map[string]struct {
		req        monitor.Request
		mock       func(m *taskclientmock.Client)
		expTaskID  model.TaskID
		expState   model.TaskState
		expStage   model.Stage
		expErr     error
		expNoStart bool
	}{
		"an uploaded file should be submitted and watched until success": {
			req: monitor.Request{Upload: upload},
			mock: func(m *taskclientmock.Client) {
				m.On("Submit", mock.Anything, *upload).Once().Return(model.TaskID("task-1"), nil)
				m.On("FetchStatus", mock.Anything, model.TaskID("task-1")).Once().Return(&model.RawStatus{
					State:  model.TaskStateSuccess,
					Result: &model.Result{Processed: 1, Rows: []model.ResultRow{{Status: model.ValidationStatusValid}}},
				}, nil)
			},
			expTaskID: "task-1",
			expState:  model.TaskStateSuccess,
			expStage:  model.StageDone,
		},
		"an existing task should be watched": {
			req: monitor.Request{TaskID: "task-2"},
			mock: func(m *taskclientmock.Client) {
				m.On("FetchStatus", mock.Anything, model.TaskID("task-2")).Once().Return(&model.RawStatus{State: model.TaskStateFailure, Error: "bad file"}, nil)
			},
			expTaskID: "task-2",
			expState:  model.TaskStateFailure,
			expStage:  model.StageValidating,
			expErr:    model.ErrPipelineFailure,
		},
		"a rejected upload should not start any task": {
			req: monitor.Request{Upload: upload},
			mock: func(m *taskclientmock.Client) {
				m.On("Submit", mock.Anything, *upload).Once().Return(model.TaskID(""), fmt.Errorf("unsupported: %w", model.ErrUpload))
			},
			expErr:     model.ErrUpload,
			expNoStart: true,
		},
		"a request without upload nor task should fail": {
			req:        monitor.Request{},
			mock:       func(m *taskclientmock.Client) {},
			expErr:     model.ErrNotValid,
			expNoStart: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			mc := taskclientmock.NewClient(t)
			test.mock(mc)
			s := newSession(t)

			svc, err := monitor.NewService(monitor.ServiceConfig{Client: mc, Session: s, Interval: time.Millisecond})
			require.NoError(err)

			var started model.TaskID
			req := test.req
			req.OnStart = func(id model.TaskID) { started = id }

			resp, err := svc.Run(context.Background(), req)
			if test.expErr != nil {
				require.ErrorIs(err, test.expErr)
			} else {
				require.NoError(err)
			}

			if test.expNoStart {
				require.Nil(resp)
				require.Empty(started)
				require.Equal(model.StageIdle, s.Stage())
				return
			}

			require.Equal(test.expTaskID, resp.TaskID)
			require.Equal(test.expTaskID, started)
			require.Equal(test.expState, resp.Outcome.State)
			require.Equal(test.expStage, s.Stage())
		})
	}
}

func TestServiceRunWithFakeClient(t *testing.T) {
	require := require.New(t)

	fc, err := fake.NewClient(fake.ClientConfig{})
	require.NoError(err)
	cs, err := chat.NewSession(chat.SessionConfig{Client: fc})
	require.NoError(err)
	s := newSession(t, cs)

	svc, err := monitor.NewService(monitor.ServiceConfig{Client: fc, Session: s, Interval: time.Millisecond})
	require.NoError(err)

	resp, err := svc.Run(context.Background(), monitor.Request{Upload: &taskclient.Upload{
		Name:    "providers.csv",
		Content: strings.NewReader("npi,first_name,last_name\n1234567893,John,Smith\n1234567890,Bad,Npi\n"),
	}})
	require.NoError(err)
	require.Equal(model.TaskStateSuccess, resp.Outcome.State)
	require.Equal(1, resp.Outcome.Report.ValidCount)
	require.Equal(1, resp.Outcome.Report.FlaggedCount)

	// The chat session follows the task.
	require.Equal(resp.TaskID, cs.TaskID())
	reply, err := cs.Send(context.Background(), resp.TaskID, "what is the accuracy?")
	require.NoError(err)
	require.Equal("The accuracy rate of this run is 95%.", reply.Text)

	snap := s.Snapshot()
	require.Equal(model.StageDone, snap.Stage)
	require.Equal("Pipeline finished successfully.", snap.Log[0].Message)
	require.Contains(logMessagesOf(snap), "Processing John Smith...")
}

func TestServiceRunRecordsHistory(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(err)

	mc := taskclientmock.NewClient(t)
	mc.On("FetchStatus", mock.Anything, model.TaskID("task-1")).Once().Return(&model.RawStatus{
		State: model.TaskStateSuccess,
		Result: &model.Result{
			Processed: 2,
			Rows:      []model.ResultRow{{Status: model.ValidationStatusValid}, {Status: model.ValidationStatusFlagged}},
			Report:    model.ServerReport{AccuracyRate: 0.95},
		},
	}, nil)
	mc.On("FetchStatus", mock.Anything, model.TaskID("task-2")).Once().Return(&model.RawStatus{State: model.TaskStateFailure, Error: "bad file"}, nil)

	svc, err := monitor.NewService(monitor.ServiceConfig{
		Client:   mc,
		Session:  newSession(t),
		Interval: time.Millisecond,
		History:  repo,
		Now:      func() time.Time { return now },
	})
	require.NoError(err)

	// An already recorded task keeps its original record.
	require.NoError(repo.CreateTask(ctx, model.TaskRecord{ID: "task-1", FileName: "providers.csv", State: model.TaskStatePending, SubmittedAt: now.Add(-time.Hour)}))

	_, err = svc.Run(ctx, monitor.Request{TaskID: "task-1"})
	require.NoError(err)
	_, err = svc.Run(ctx, monitor.Request{TaskID: "task-2"})
	require.ErrorIs(err, model.ErrPipelineFailure)

	rec, err := repo.GetTask(ctx, "task-1")
	require.NoError(err)
	assert.Equal(t, model.TaskRecord{
		ID:          "task-1",
		FileName:    "providers.csv",
		State:       model.TaskStateSuccess,
		Stage:       model.StageDone,
		SubmittedAt: now.Add(-time.Hour),
		FinishedAt:  &now,
		Report:      &model.Report{TotalProcessed: 2, ValidCount: 1, FlaggedCount: 1, AccuracyRate: 0.95},
	}, *rec)

	rec, err = repo.GetTask(ctx, "task-2")
	require.NoError(err)
	assert.Equal(t, model.TaskStateFailure, rec.State)
	assert.Equal(t, "bad file", rec.FailureReason)
	assert.Equal(t, now, rec.SubmittedAt)
}

func logMessagesOf(snap session.Snapshot) []string {
	var msgs []string
	for _, e := range snap.Log {
		msgs = append(msgs, e.Message)
	}
	return msgs
}
