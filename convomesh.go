// Package convomesh provides a high-level façade over the session runner for
// embedding the assistant in other programs. Most applications interact with
// this package by:
//  1. Creating an Assistant via New() with a model and optional durable stores
//  2. Asking it with text, file or image inputs on behalf of a user identity
//
// Interactive transports that stream replies use the runner directly, as the
// server package does.
package convomesh

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hupe1980/convomesh/engine"
	"github.com/hupe1980/convomesh/model"
	"github.com/hupe1980/convomesh/normalize"
	"github.com/hupe1980/convomesh/runner"
)

// Options configures the Assistant. It is the runner configuration: unset
// stores default to in-memory implementations.
type Options = runner.Options

// Assistant is the high-level façade aggregating the runner and its
// sessions.
type Assistant struct {
	runner *runner.Runner
}

// New creates an Assistant driving llm.
func New(llm model.Model, optFns ...func(o *Options)) (*Assistant, error) {
	r, err := runner.New(llm, optFns...)
	if err != nil {
		return nil, err
	}
	return &Assistant{runner: r}, nil
}

// Close shuts the runner down.
func (a *Assistant) Close() { a.runner.Shutdown() }

// Runner returns the underlying runner.
func (a *Assistant) Runner() *runner.Runner { return a.runner }

// Reply is the answer to one Ask.
type Reply struct {
	Text string
	// ConversationID addresses the conversation the exchange was logged to.
	ConversationID string
}

// Ask runs one input against conversationID on behalf of identity and waits
// for the reply. The conversation is replayed into a short-lived session and
// the exchange is persisted to it; an empty conversationID starts a new
// conversation.
func (a *Assistant) Ask(ctx context.Context, identity, conversationID string, in normalize.Input) (Reply, error) {
	events := make(chan engine.Event, 64)
	sink := engine.SinkFunc(func(ev engine.Event) {
		if ev.Type != engine.EventDone && ev.Type != engine.EventError {
			return
		}
		select {
		case events <- ev:
		default:
		}
	})

	sess, err := a.runner.Open("ask-"+uuid.NewString(), sink)
	if err != nil {
		return Reply{}, err
	}
	defer func() { _ = a.runner.Close(sess.ID) }()

	if err := sess.Orchestrator.Hydrate(ctx, identity, conversationID); err != nil {
		return Reply{}, err
	}
	if err := sess.Orchestrator.HandleInput(ctx, in); err != nil {
		return Reply{}, err
	}
	reply := Reply{ConversationID: sess.Orchestrator.ConversationID()}

	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case ev := <-events:
		if ev.Type == engine.EventError {
			if ev.Err == nil {
				return Reply{}, errors.New("generation failed")
			}
			return Reply{}, ev.Err
		}
		reply.Text = ev.Text
		return reply, nil
	}
}
