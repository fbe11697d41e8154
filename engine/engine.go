package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/logging"
	"github.com/hupe1980/convomesh/model"
	"github.com/hupe1980/convomesh/tool"
)

// Conversation is the session surface a run reads from and commits to.
// session.Orchestrator implements it.
type Conversation interface {
	// Messages returns a snapshot of the prompt context.
	Messages() []core.Content
	// RecordReply commits the reply and the tool exchange that led to it.
	// It must commit nothing once ctx is done.
	RecordReply(ctx context.Context, text string, pending ...core.Content) error
}

// Config defines tuning parameters of an Engine.
type Config struct {
	// MaxSteps bounds the model round trips of one run; every tool round
	// costs one step. Zero means unlimited.
	MaxSteps int

	// InboxSize bounds the number of generate signals waiting for the
	// worker. Signals beyond it are refused with core.ErrInboxFull.
	InboxSize int

	// MaxParallelTools bounds concurrent tool calls within one round.
	MaxParallelTools int

	// Stream requests incremental text from the model.
	Stream bool
}

// DefaultConfig holds the defaults applied by New.
var DefaultConfig = Config{
	MaxSteps:         8,
	InboxSize:        8,
	MaxParallelTools: 4,
	Stream:           true,
}

// Options configures an Engine.
type Options struct {
	// Config holds the tuning parameters. Defaults to DefaultConfig.
	Config Config

	// SessionID tags tool contexts, events and log lines.
	SessionID string

	// Instructions are sent with every model request in addition to the
	// system messages already present in the context.
	Instructions string

	// Tools offered to the model. Defaults to an empty registry.
	Tools *tool.Registry

	// Sink observes runs. Defaults to DiscardSink.
	Sink Sink

	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// ErrEngineClosed is returned by signals sent after Close.
var ErrEngineClosed = errors.New("engine closed")

// Engine is the generation worker of one session. It implements
// core.Signaler: Generate queues a run and Interrupt abandons the current
// one. Runs execute one at a time on a dedicated goroutine.
//
// Every signal is stamped with the interrupt epoch current at send time.
// Interrupt advances the epoch, so a signal that was already taken off the
// inbox but not yet started is dropped instead of producing a stale reply.
type Engine struct {
	conv         Conversation
	llm          model.Model
	config       Config
	sessionID    string
	instructions string
	tools        *tool.Registry
	sink         Sink
	logger       logging.Logger
	exec         *executor

	inbox chan uint64
	runs  atomic.Uint64

	mu     sync.Mutex
	epoch  uint64
	cancel context.CancelFunc

	base       context.Context
	baseCancel context.CancelFunc
	done       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once
}

var _ core.Signaler = (*Engine)(nil)

// New creates an engine for conv driven by llm and starts its worker.
// Close stops it.
func New(conv Conversation, llm model.Model, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Sink:   DiscardSink{},
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.InboxSize <= 0 {
		opts.Config.InboxSize = DefaultConfig.InboxSize
	}
	if opts.Tools == nil {
		opts.Tools = tool.NewRegistry()
	}
	if opts.Sink == nil {
		opts.Sink = DiscardSink{}
	}
	logger := logging.OrNoOp(opts.Logger)

	base, baseCancel := context.WithCancel(context.Background())
	e := &Engine{
		conv:         conv,
		llm:          llm,
		config:       opts.Config,
		sessionID:    opts.SessionID,
		instructions: opts.Instructions,
		tools:        opts.Tools,
		sink:         opts.Sink,
		logger:       logger,
		exec: &executor{
			registry:    opts.Tools,
			sessionID:   opts.SessionID,
			maxParallel: opts.Config.MaxParallelTools,
			logger:      logger,
		},
		inbox:      make(chan uint64, opts.Config.InboxSize),
		base:       base,
		baseCancel: baseCancel,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go e.loop()
	return e
}

// Generate queues a run over the current context. It never blocks: a full
// inbox yields core.ErrInboxFull.
func (e *Engine) Generate() error {
	select {
	case <-e.done:
		return ErrEngineClosed
	default:
	}
	e.mu.Lock()
	epoch := e.epoch
	e.mu.Unlock()
	select {
	case e.inbox <- epoch:
		return nil
	default:
		e.logger.Warn("engine.signal.refused", "session_id", e.sessionID, "error", core.ErrInboxFull.Error())
		return core.ErrInboxFull
	}
}

// Interrupt cancels the run in flight and drops queued signals. It returns
// without waiting for the run to unwind; whatever the run produced is never
// committed.
func (e *Engine) Interrupt() error {
	select {
	case <-e.done:
		return ErrEngineClosed
	default:
	}
	e.mu.Lock()
	e.epoch++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()

	dropped := 0
	for {
		select {
		case <-e.inbox:
			dropped++
		default:
			e.logger.Debug("engine.interrupt", "session_id", e.sessionID, "dropped", dropped)
			return nil
		}
	}
}

// Close cancels the current run and stops the worker. It is idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		e.baseCancel()
	})
	<-e.stopped
}

func (e *Engine) loop() {
	defer close(e.stopped)
	for {
		select {
		case <-e.done:
			return
		case epoch := <-e.inbox:
			ctx, ok := e.begin(epoch)
			if !ok {
				e.logger.Debug("engine.signal.stale", "session_id", e.sessionID)
				continue
			}
			e.run(ctx)
			e.finish()
		}
	}
}

// begin derives the run context when epoch is still current.
func (e *Engine) begin(epoch uint64) (context.Context, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch {
		return nil, false
	}
	ctx, cancel := context.WithCancel(e.base)
	e.cancel = cancel
	return ctx, true
}

func (e *Engine) finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// run performs one generation: model rounds until a text reply, with tool
// rounds in between, then commits the reply together with the tool exchange.
func (e *Engine) run(ctx context.Context) {
	runID := e.runs.Add(1)
	limiter := core.NewStepLimiter(e.config.MaxSteps)
	history := e.conv.Messages()

	var pending []core.Content
	e.logger.Info("engine.run.start", "session_id", e.sessionID, "run", runID, "messages", len(history))

	for {
		if err := limiter.Increment(); err != nil {
			e.fail(ctx, runID, err)
			return
		}

		contents := make([]core.Content, 0, len(history)+len(pending))
		contents = append(contents, history...)
		contents = append(contents, pending...)

		text, calls, err := e.step(ctx, runID, contents)
		if err != nil {
			e.fail(ctx, runID, err)
			return
		}

		if len(calls) == 0 {
			if err := e.conv.RecordReply(ctx, text, pending...); err != nil {
				e.fail(ctx, runID, err)
				return
			}
			e.logger.Info("engine.run.complete", "session_id", e.sessionID, "run", runID, "steps", limiter.Count())
			e.sink.Emit(Event{Type: EventDone, SessionID: e.sessionID, Run: runID, Text: text})
			return
		}

		pending = append(pending, e.toolRound(ctx, runID, text, calls)...)
		if ctx.Err() != nil {
			e.fail(ctx, runID, ctx.Err())
			return
		}
	}
}

// step performs one model round trip, forwarding text fragments to the sink.
func (e *Engine) step(ctx context.Context, runID uint64, contents []core.Content) (string, []core.FunctionCall, error) {
	req := model.Request{
		Instructions: e.instructions,
		Contents:     contents,
		Tools:        e.tools.Definitions(),
		Stream:       e.config.Stream,
	}
	start := time.Now()
	respCh, errCh := e.llm.Generate(ctx, req)

	var (
		final   *model.Response
		partial strings.Builder
	)
	for resp := range respCh {
		if resp.Partial {
			delta := resp.Content.Text()
			if delta == "" || ctx.Err() != nil {
				continue
			}
			partial.WriteString(delta)
			e.sink.Emit(Event{Type: EventDelta, SessionID: e.sessionID, Run: runID, Text: delta})
			continue
		}
		final = &resp
	}
	err := <-errCh
	e.recordModelCall(final, time.Since(start), err)
	if err != nil {
		return "", nil, fmt.Errorf("generate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if final == nil {
		return partial.String(), nil, nil
	}
	text := final.Content.Text()
	if text == "" {
		text = partial.String()
	}
	return text, final.Content.FunctionCalls(), nil
}

// modelCallLogger is implemented by loggers that record model latency and
// token usage, such as logging.StructuredLogger.
type modelCallLogger interface {
	LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error)
}

func (e *Engine) recordModelCall(final *model.Response, dur time.Duration, err error) {
	l, ok := e.logger.(modelCallLogger)
	if !ok {
		return
	}
	tokens := 0
	if final != nil && final.Usage != nil {
		tokens = final.Usage.TotalTokens
	}
	l.LogLLMCall(e.llm.Info().Name, tokens, dur, err == nil, err)
}

// toolRound executes calls and returns the contents recording the round: the
// assistant call message, one tool message with every result in call order,
// and the attachments the tools produced.
func (e *Engine) toolRound(ctx context.Context, runID uint64, text string, calls []core.FunctionCall) []core.Content {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = uuid.NewString()
		}
	}

	assistant := core.Content{Role: core.RoleAssistant}
	if text != "" {
		assistant.Parts = append(assistant.Parts, core.TextPart{Text: text})
	}
	for _, c := range calls {
		assistant.Parts = append(assistant.Parts, core.FunctionCallPart{FunctionCall: c})
	}

	results := e.exec.execute(ctx, calls)

	responses := core.Content{Role: core.RoleTool}
	var attachments []core.Content
	for i, c := range calls {
		res := results[i]
		responses.Parts = append(responses.Parts, core.FunctionResponsePart{
			FunctionResponse: core.FunctionResponse{ID: c.ID, Name: c.Name, Response: res.JSON()},
		})
		if res.Attachment != nil {
			attachments = append(attachments, res.Attachment.Clone())
		}
		if ctx.Err() == nil {
			e.sink.Emit(Event{Type: EventTool, SessionID: e.sessionID, Run: runID, Tool: c.Name, Success: res.Success})
		}
	}

	out := make([]core.Content, 0, 2+len(attachments))
	out = append(out, assistant, responses)
	return append(out, attachments...)
}

// fail reports a run that ended without a reply. Interrupted runs end
// silently.
func (e *Engine) fail(ctx context.Context, runID uint64, err error) {
	if ctx.Err() != nil {
		e.logger.Info("engine.run.interrupted", "session_id", e.sessionID, "run", runID)
		return
	}
	e.logger.Error("engine.run.failed", "session_id", e.sessionID, "run", runID, "error", err.Error())
	e.sink.Emit(Event{Type: EventError, SessionID: e.sessionID, Run: runID, Err: err})
}
