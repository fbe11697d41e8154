package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/convomesh/conversation"
	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/logging"
	"github.com/hupe1980/convomesh/memory"
	"github.com/hupe1980/convomesh/normalize"
	"github.com/hupe1980/convomesh/prompt"
)

// State is the lifecycle state of a session.
type State int

const (
	// Unconfigured is the initial state: no identity and no conversation bound.
	Unconfigured State = iota
	// Active is entered by the first Configure or Hydrate.
	Active
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "unconfigured"
}

// Options configures an Orchestrator.
type Options struct {
	// ID identifies the session in logs. Defaults to a random UUID.
	ID string
	// Memory is the scoped fact layer. Defaults to an in-memory service.
	Memory *memory.Service
	// Conversations backs the conversation log. Defaults to an in-memory store.
	Conversations core.ConversationStore
	// Source is recorded on conversations created by this session.
	Source string
	// SystemPrompt seeds the prompt context on every reset.
	SystemPrompt string
	// Normalizer converts inputs. Defaults to normalize.New().
	Normalizer *normalize.Normalizer
	// QueueSize bounds the number of pending operations. Defaults to 64.
	QueueSize int
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Orchestrator owns the prompt context and the conversation log of one
// session. Every operation runs on a single goroutine in submission order, so
// no two operations of the same session ever mutate the context concurrently.
type Orchestrator struct {
	id         string
	memory     *memory.Service
	log        *conversation.Log
	context    *prompt.Context
	normalizer *normalize.Normalizer
	logger     logging.Logger

	ops     chan func()
	done    chan struct{}
	stopped chan struct{}
	close   sync.Once

	mu       sync.RWMutex
	state    State
	identity string
	signaler core.Signaler
}

// New creates an orchestrator and starts its operation loop. Close stops it.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		ID:        uuid.NewString(),
		QueueSize: 64,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewService()
	}
	if opts.Conversations == nil {
		opts.Conversations = conversation.NewInMemoryStore()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	logger := logging.OrNoOp(opts.Logger)

	o := &Orchestrator{
		id:     opts.ID,
		memory: opts.Memory,
		log: conversation.NewLog(opts.Conversations, func(lo *conversation.LogOptions) {
			lo.Source = opts.Source
			lo.Logger = logger
		}),
		context:    prompt.NewContext(func(co *prompt.ContextOptions) { co.SystemPrompt = opts.SystemPrompt }),
		normalizer: opts.Normalizer,
		logger:     logger,
		ops:        make(chan func(), opts.QueueSize),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go o.loop()
	return o
}

// ID returns the session id.
func (o *Orchestrator) ID() string { return o.id }

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Identity returns the bound identity, empty when anonymous.
func (o *Orchestrator) Identity() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.identity
}

// ConversationID returns the conversation appends currently target.
func (o *Orchestrator) ConversationID() string { return o.log.Current() }

// Messages returns a snapshot of the prompt context.
func (o *Orchestrator) Messages() []core.Content { return o.context.Messages() }

// AttachSignaler connects the generation engine. Passing nil detaches it.
func (o *Orchestrator) AttachSignaler(s core.Signaler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signaler = s
}

// Close stops the operation loop. Pending and later operations fail with
// core.ErrSessionClosed.
func (o *Orchestrator) Close() {
	o.close.Do(func() { close(o.done) })
	<-o.stopped
}

func (o *Orchestrator) loop() {
	defer close(o.stopped)
	for {
		select {
		case <-o.done:
			return
		case op := <-o.ops:
			op()
		}
	}
}

// do runs fn on the operation loop and waits for its result.
func (o *Orchestrator) do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	op := func() { errCh <- fn() }
	select {
	case <-o.done:
		return core.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	case o.ops <- op:
	}
	select {
	case err := <-errCh:
		return err
	case <-o.stopped:
		return core.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Configure binds identity and conversation, rebuilds the prompt context and
// asks the engine for a greeting. An empty identity keeps the identity
// already bound; an empty conversationID starts a fresh conversation on the
// first append. Calling Configure again switches the binding in place.
//
// The context stays valid when no engine is attached; the call then returns
// core.ErrNoSignaler.
func (o *Orchestrator) Configure(ctx context.Context, identity, conversationID string) error {
	return o.do(ctx, func() error {
		if o.State() == Active {
			o.interrupt()
		}
		var instructions []string
		if conversationID != "" {
			if o.rebuild(ctx, identity, conversationID) > 0 {
				instructions = append(instructions, prompt.ResumeInstruction)
			} else {
				instructions = append(instructions, prompt.EmptyHistoryInstruction)
			}
		} else {
			o.rebuild(ctx, identity, "")
			instructions = append(instructions, prompt.FreshInstruction)
		}
		for _, text := range instructions {
			o.context.AppendText(core.RoleSystem, text)
		}
		o.logger.Info("session.configure",
			"session_id", o.id,
			"identity", o.Identity(),
			"conversation_id", conversationID,
			"resume", conversationID != "")
		return o.generate(len(instructions))
	})
}

// Hydrate rebuilds the prompt context like Configure but queues no
// instruction and triggers no generation. The text chat surface uses it to
// load a conversation before handling one input.
func (o *Orchestrator) Hydrate(ctx context.Context, identity, conversationID string) error {
	return o.do(ctx, func() error {
		o.rebuild(ctx, identity, conversationID)
		return nil
	})
}

// rebuild resets the context, binds identity and conversation and replays
// memory and history. It returns the number of replayed turns. An unknown
// conversation id is created for the bound identity. Backend failures degrade
// to an empty memory or history, and a conversation that cannot be opened is
// replaced by an auto-provisioned one on the next append.
func (o *Orchestrator) rebuild(ctx context.Context, identity, conversationID string) int {
	o.context.Reset()

	o.mu.Lock()
	if identity != "" {
		o.identity = identity
	}
	bound := o.identity
	o.state = Active
	o.mu.Unlock()
	o.log.Bind(bound)

	facts, err := o.memory.GetAll(ctx, bound)
	if err != nil {
		o.logger.Warn("session.memory.degraded", "session_id", o.id, "error", err.Error())
	}
	o.context.InjectMemory(facts)

	created, err := o.log.Open(ctx, conversationID)
	if err != nil {
		o.logger.Warn("session.conversation.degraded", "session_id", o.id, "conversation_id", conversationID, "error", err.Error())
		o.log.SetCurrent("")
		return 0
	}
	if conversationID == "" || created {
		return 0
	}
	entries, err := o.log.History(ctx, conversationID)
	if err != nil {
		o.logger.Warn("session.history.degraded", "session_id", o.id, "conversation_id", conversationID, "error", err.Error())
		return 0
	}
	o.context.ReplayHistory(entries)
	return len(entries)
}

// HandleInput interrupts in-flight generation, normalizes in, appends it to
// the context, records it in the conversation log and asks for a reply.
//
// Inputs that cannot be normalized leave the session untouched. When the log
// write fails the context append is rolled back and the error returned.
func (o *Orchestrator) HandleInput(ctx context.Context, in normalize.Input) error {
	return o.do(ctx, func() error {
		o.interrupt()

		res, err := o.normalizer.Normalize(in)
		if err != nil {
			o.logger.Warn("session.input.rejected", "session_id", o.id, "kind", in.Kind(), "error", err.Error())
			return err
		}
		if res.Truncated {
			o.logger.Info("session.input.truncated", "session_id", o.id, "kind", in.Kind())
		}

		mark := o.context.Len()
		o.context.Append(res.Content)
		if res.Persist {
			if _, err := o.log.Append(ctx, core.RoleUser, res.LogText, res.Images); err != nil {
				o.context.Truncate(mark)
				return fmt.Errorf("handle %s input: %w", in.Kind(), err)
			}
		}
		o.logger.Debug("session.input", "session_id", o.id, "kind", in.Kind(), "persisted", res.Persist)
		return o.generate(1)
	})
}

// AppendContext appends contents to the prompt context without logging them.
// Nothing is appended when ctx is already done.
func (o *Orchestrator) AppendContext(ctx context.Context, contents ...core.Content) error {
	return o.do(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, c := range contents {
			o.context.Append(c)
		}
		return nil
	})
}

// RecordReply commits a finished assistant turn: the pending tool exchange
// and the reply text are appended to the context and the reply is logged with
// role agent. Nothing is committed when ctx was cancelled before the
// operation ran, which is how an interrupted run is discarded.
func (o *Orchestrator) RecordReply(ctx context.Context, text string, pending ...core.Content) error {
	return o.do(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, c := range pending {
			o.context.Append(c)
		}
		if text == "" {
			return nil
		}
		mark := o.context.Len()
		o.context.AppendText(core.RoleAssistant, text)
		if _, err := o.log.Append(ctx, core.RoleAgent, text, nil); err != nil {
			o.context.Truncate(mark)
			return fmt.Errorf("record reply: %w", err)
		}
		return nil
	})
}

// SaveFact stores a fact on behalf of a tool. Personal facts bind to the
// session identity; without one they fall back to the global tier. The
// returned scope is where the fact was written.
func (o *Orchestrator) SaveFact(ctx context.Context, key, value string, public bool) (core.Scope, error) {
	var scope core.Scope
	err := o.do(ctx, func() error {
		scope = core.GlobalScope
		if id := o.Identity(); !public && id != "" {
			scope = core.ScopedTo(id)
		}
		_, err := o.memory.Save(ctx, key, value, scope)
		return err
	})
	return scope, err
}

// DeleteFact removes a fact for the session identity following the memory
// delete policy.
func (o *Orchestrator) DeleteFact(ctx context.Context, key string) (bool, error) {
	var removed bool
	err := o.do(ctx, func() error {
		var err error
		removed, err = o.memory.Delete(ctx, key, o.Identity())
		return err
	})
	return removed, err
}

func (o *Orchestrator) currentSignaler() core.Signaler {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.signaler
}

func (o *Orchestrator) interrupt() {
	s := o.currentSignaler()
	if s == nil {
		return
	}
	if err := s.Interrupt(); err != nil {
		o.logger.Warn("session.interrupt.failed", "session_id", o.id, "error", err.Error())
	}
}

// generate signals the engine when queued messages exist.
func (o *Orchestrator) generate(queued int) error {
	if queued == 0 {
		return nil
	}
	s := o.currentSignaler()
	if s == nil {
		o.logger.Warn("session.generate.undelivered", "session_id", o.id, "error", core.ErrNoSignaler.Error())
		return core.ErrNoSignaler
	}
	if err := s.Generate(); err != nil {
		o.logger.Warn("session.generate.failed", "session_id", o.id, "error", err.Error())
		return fmt.Errorf("signal generate: %w", err)
	}
	return nil
}

// IsDegraded reports whether err describes a condition under which the
// session keeps working: a missing engine or a rejected input.
func IsDegraded(err error) bool {
	return errors.Is(err, core.ErrNoSignaler) ||
		errors.Is(err, core.ErrEmptyInput) ||
		errors.Is(err, core.ErrUnsupportedInput)
}
