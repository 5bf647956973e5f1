package lib

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agenciai/agx/internal/app/monitor"
	"github.com/agenciai/agx/internal/app/status"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/poll"
	"github.com/agenciai/agx/internal/taskclient"
)

// Run uploads a file (or picks an already submitted task) and watches it until
// the pipeline finishes. The task becomes the tracked one of the client.
//
// A failed pipeline returns the result together with an error matching
// [ErrPipelineFailure]. Cancelling the context stops the polling.
func (c *Client) Run(ctx context.Context, opts RunOpts) (*TaskResult, error) {
	req := monitor.Request{TaskID: model.TaskID(opts.TaskID)}
	if opts.Content != nil {
		if opts.FileName == "" {
			return nil, fmt.Errorf("file name is required: %w", ErrNotValid)
		}
		req.Upload = &taskclient.Upload{Name: opts.FileName, Content: opts.Content}
	}

	svc, err := monitor.NewService(monitor.ServiceConfig{
		Client:   c.client,
		Session:  c.session,
		Interval: c.interval,
		History:  c.history,
		Logger:   c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	var wg sync.WaitGroup
	if opts.OnEvent != nil {
		events := make(chan poll.Event)
		req.Events = events
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range events {
				opts.OnEvent(fromInternalEvent(ev))
			}
		}()
		defer func() {
			close(events)
			wg.Wait()
		}()
	}

	resp, err := svc.Run(ctx, req)
	if err != nil && !errors.Is(err, model.ErrPipelineFailure) {
		return nil, mapError(err)
	}

	snap := c.session.Snapshot()
	res := &TaskResult{
		TaskID:        string(resp.TaskID),
		State:         TaskState(resp.Outcome.State),
		Stage:         fromInternalStage(snap.Stage),
		Report:        fromInternalReport(resp.Outcome.Report),
		Rows:          fromInternalRows(resp.Outcome.Rows),
		FailureReason: resp.Outcome.FailureReason,
		Log:           fromInternalLog(snap.Log),
	}

	return res, mapError(err)
}

// Status fetches the current status of any task once, without tracking it.
func (c *Client) Status(ctx context.Context, taskID string) (*TaskStatus, error) {
	svc, err := status.NewService(status.ServiceConfig{
		Client: c.client,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, status.Request{TaskID: model.TaskID(taskID)})
	if err != nil {
		return nil, mapError(err)
	}

	st := &TaskStatus{
		TaskID: taskID,
		State:  TaskState(resp.Status.State),
		Stage:  fromInternalStage(resp.Stage),
		Error:  resp.Status.Error,
		Report: fromInternalReport(resp.Report),
	}
	if resp.Status.Progress != nil {
		st.Step = resp.Status.Progress.Step
	}

	return st, nil
}

// Ask sends a question about the results of the tracked task and returns the
// assistant answer. Only one question can be in flight at the same time.
//
// Pipeline API failures are not returned as errors, the answer is the
// assistant error reply instead.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	id := c.session.TaskID()
	if id == "" {
		return "", fmt.Errorf("no task is being tracked: %w", ErrNotValid)
	}

	reply, err := c.chat.Send(ctx, id, question)
	if err != nil {
		return "", mapError(err)
	}

	return reply.Text, nil
}

// Conversation returns the chat messages of the tracked task in order.
func (c *Client) Conversation() []ChatMessage {
	msgs := c.chat.Messages()
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{FromUser: m.Role == model.ChatRoleUser, Text: m.Text})
	}
	return out
}

// ChatMessage is a message of the task chat.
type ChatMessage struct {
	// FromUser is false for the assistant answers.
	FromUser bool
	Text     string
}

// History returns the recorded tasks, most recently submitted first. A limit
// <= 0 returns all of them.
func (c *Client) History(ctx context.Context, limit int) ([]TaskRecord, error) {
	recs, err := c.history.ListTasks(ctx, limit)
	if err != nil {
		return nil, mapError(fmt.Errorf("could not list tasks: %w", err))
	}

	out := make([]TaskRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, fromInternalRecord(r))
	}
	return out, nil
}

// DownloadURL returns the location of the validated CSV of a task.
func (c *Client) DownloadURL(taskID string) string {
	return c.client.DownloadURL(model.TaskID(taskID))
}
