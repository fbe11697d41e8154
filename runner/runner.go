package runner

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/convomesh/conversation"
	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/engine"
	"github.com/hupe1980/convomesh/prompt"
	"github.com/hupe1980/convomesh/logging"
	"github.com/hupe1980/convomesh/memory"
	"github.com/hupe1980/convomesh/model"
	"github.com/hupe1980/convomesh/normalize"
	"github.com/hupe1980/convomesh/session"
	"github.com/hupe1980/convomesh/tool"
	"github.com/hupe1980/convomesh/vision"
)

// ErrRunnerClosed is returned by Open after Shutdown.
var ErrRunnerClosed = errors.New("runner closed")

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// Memory is the scoped fact layer shared by all sessions. Defaults to
	// an in-memory service.
	Memory *memory.Service
	// Conversations backs every session's conversation log. Defaults to
	// an in-memory store shared by all sessions.
	Conversations core.ConversationStore
	// Knowledge backs search_knowledge. Nil leaves the tool out.
	Knowledge tool.KnowledgeSearcher
	// Directory backs the user counting tools. Nil leaves them out.
	Directory core.Directory
	// Frames holds camera frames per session. Nil leaves view_camera out.
	Frames *vision.Store
	// Normalizer converts inputs. Defaults to normalize.New().
	Normalizer *normalize.Normalizer
	// SystemPrompt seeds every session context. It may use template
	// markers expanded with PromptVars.
	SystemPrompt string
	// PromptVars are the template variables of SystemPrompt.
	PromptVars map[string]any
	// Source is recorded on conversations the sessions create.
	Source string
	// Engine tunes the generation engines.
	Engine engine.Config
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Session is the orchestrator and engine pair serving one session id.
type Session struct {
	ID           string
	Orchestrator *session.Orchestrator
	Engine       *engine.Engine
	// Events fans engine events out to the transports of the session.
	Events *engine.MultiSink
	// Frames is the camera buffer, nil when the runner has no frame store.
	Frames *vision.Buffer
}

// Runner builds sessions from shared dependencies and tracks them by id.
// Public methods are safe for concurrent use.
type Runner struct {
	llm          model.Model
	memory       *memory.Service
	conv         core.ConversationStore
	knowledge    tool.KnowledgeSearcher
	directory    core.Directory
	frames       *vision.Store
	normalizer   *normalize.Normalizer
	systemPrompt string
	source       string
	engineConfig engine.Config
	logger       logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// New constructs a Runner driving llm. It fails when the system prompt
// template does not render.
func New(llm model.Model, optFns ...func(o *Options)) (*Runner, error) {
	opts := Options{
		Engine: engine.DefaultConfig,
		Logger: logging.NoOpLogger{},
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
	systemPrompt, err := prompt.Render(opts.SystemPrompt, opts.PromptVars)
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	return &Runner{
		llm:          llm,
		memory:       opts.Memory,
		conv:         opts.Conversations,
		knowledge:    opts.Knowledge,
		directory:    opts.Directory,
		frames:       opts.Frames,
		normalizer:   opts.Normalizer,
		systemPrompt: systemPrompt,
		source:       opts.Source,
		engineConfig: opts.Engine,
		logger:       logging.OrNoOp(opts.Logger),
		sessions:     make(map[string]*Session),
	}, nil
}

// Open returns the session of id, building it when missing. An empty id
// allocates a fresh one. sinks are added to the session's event fan-out.
func (r *Runner) Open(id string, sinks ...engine.Sink) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRunnerClosed
	}
	if s, ok := r.sessions[id]; ok {
		for _, sink := range sinks {
			s.Events.Add(sink)
		}
		return s, nil
	}
	s := r.build(id, sinks)
	r.sessions[id] = s
	r.logger.Info("runner.session.open", "session_id", id, "sessions", len(r.sessions))
	return s, nil
}

func (r *Runner) build(id string, sinks []engine.Sink) *Session {
	orch := session.New(func(o *session.Options) {
		o.ID = id
		o.Memory = r.memory
		o.Conversations = r.conv
		o.Source = r.source
		o.SystemPrompt = r.systemPrompt
		o.Normalizer = r.normalizer
		o.Logger = r.logger
	})

	var frames *vision.Buffer
	deps := tool.Dependencies{
		Facts:     orch,
		Knowledge: r.knowledge,
		Directory: r.directory,
	}
	if r.frames != nil {
		frames = r.frames.Buffer(id)
		deps.Frames = frames
	}

	events := engine.NewMultiSink(sinks...)
	eng := engine.New(orch, r.llm, func(o *engine.Options) {
		o.Config = r.engineConfig
		o.SessionID = id
		o.Tools = tool.NewRegistry(tool.Builtin(deps)...)
		o.Sink = events
		o.Logger = r.logger
	})
	orch.AttachSignaler(eng)

	return &Session{ID: id, Orchestrator: orch, Engine: eng, Events: events, Frames: frames}
}

// Get returns the session of id.
func (r *Runner) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (r *Runner) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close tears down the session of id: the orchestrator stops accepting
// operations, in-flight generation is abandoned and the camera buffer is
// dropped.
func (r *Runner) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	r.teardown(s)
	r.logger.Info("runner.session.close", "session_id", id)
	return nil
}

// Shutdown closes every session and refuses new ones.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		r.teardown(s)
	}
	r.logger.Info("runner.shutdown", "sessions", len(sessions))
}

func (r *Runner) teardown(s *Session) {
	// The engine goes first so no run is left waiting on a closed orchestrator.
	s.Engine.Close()
	s.Orchestrator.Close()
	if r.frames != nil {
		_ = r.frames.Delete(s.ID)
	}
}
