// Package chat holds the chat conversation about a task results.
package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
)

const (
	// Greeting is the assistant message shown when the chat is opened.
	Greeting = "Hello! I am your Data Assistant. Ask me anything about the validation results."

	// ErrorReply is the assistant message shown when a question could not be answered.
	ErrorReply = "Sorry, I encountered an error."
)

// Asker answers chat messages about a task.
type Asker interface {
	SendChat(ctx context.Context, id model.TaskID, text string) (string, error)
}

// SessionConfig is the configuration of the chat session.
type SessionConfig struct {
	Client Asker
	Logger log.Logger
}

func (c *SessionConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "chat.Session"})

	return nil
}

// Session is the chat conversation of the current task. It's safe for
// concurrent use and only one message is in flight at the same time.
type Session struct {
	client Asker
	logger log.Logger

	mu       sync.Mutex
	taskID   model.TaskID
	messages []model.ChatMessage
	pending  bool
	// gen changes on every reset so replies to a previous task are dropped.
	gen uint64
}

// NewSession returns a new chat session without task.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Session{
		client: cfg.Client,
		logger: cfg.Logger,
	}, nil
}

// Reset drops the conversation and scopes the session to a new task.
func (s *Session) Reset(id model.TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.taskID = id
	s.messages = nil
	s.pending = false
	s.gen++
}

// Send sends a user message about the task and returns the assistant reply.
//
// Blank messages, messages for a task other than the session one, and
// messages while another one is pending are rejected without any change.
// Remote failures are not returned as errors, they become the assistant
// error reply.
func (s *Session) Send(ctx context.Context, id model.TaskID, text string) (*model.ChatMessage, error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	switch {
	case id == "":
		s.mu.Unlock()
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	case id != s.taskID:
		s.mu.Unlock()
		return nil, fmt.Errorf("chat is scoped to task %q, not %q: %w", s.taskID, id, model.ErrNotValid)
	case text == "":
		s.mu.Unlock()
		return nil, fmt.Errorf("message is required: %w", model.ErrNotValid)
	case s.pending:
		s.mu.Unlock()
		return nil, fmt.Errorf("a message is already pending: %w", model.ErrNotValid)
	}

	gen := s.gen
	s.messages = append(s.messages, model.ChatMessage{Role: model.ChatRoleUser, Text: text})
	s.pending = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			s.pending = false
		}
		s.mu.Unlock()
	}()

	reply := model.ChatMessage{Role: model.ChatRoleAssistant}
	resp, err := s.client.SendChat(ctx, id, text)
	if err != nil {
		s.logger.Warningf("Could not answer chat message on task %s: %s", id, err)
		reply.Text = ErrorReply
	} else {
		reply.Text = resp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.logger.Debugf("Dropping chat reply of task %s, session was reset", id)
		return nil, fmt.Errorf("chat was reset while waiting the reply: %w", model.ErrNotValid)
	}
	s.messages = append(s.messages, reply)

	return &reply, nil
}

// Messages returns the conversation in order, without the greeting.
func (s *Session) Messages() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Pending returns true while a message is waiting for its reply.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// TaskID returns the task the session is scoped to.
func (s *Session) TaskID() model.TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskID
}
