package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/convomesh/config"
	"github.com/hupe1980/convomesh/engine"
	"github.com/hupe1980/convomesh/model"
	"github.com/hupe1980/convomesh/normalize"
	"github.com/hupe1980/convomesh/prompt"
	"github.com/hupe1980/convomesh/runner"
	"github.com/hupe1980/convomesh/server"
	"github.com/hupe1980/convomesh/vision"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voice and chat surfaces",
	Long: `Run the realtime voice websocket and the text chat HTTP API until
interrupted. Each surface can be disabled in the configuration.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.Voice.Enabled && !cfg.Chat.Enabled {
		return errors.New("no surface enabled")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := newDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.stores.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Voice.Enabled {
		var frames *vision.Store
		if cfg.Camera.Enabled {
			frames = vision.NewStore(func(o *vision.Options) {
				o.CaptureInterval = cfg.CaptureInterval()
				o.MaxSize = cfg.Camera.MaxSize
				o.Quality = cfg.Camera.Quality
				o.Logger = logger
			})
		}
		r, err := deps.runner(cfg.Prompts.Voice, prompt.VoiceSystemPrompt, "voice", frames)
		if err != nil {
			return err
		}
		h := server.NewVoiceHandler(r, func(o *server.VoiceOptions) { o.Logger = logger })
		srv := server.NewHTTPServer(cfg.Voice.Addr, h.Mux())
		g.Go(func() error {
			defer r.Shutdown()
			defer h.Close()
			return server.Serve(gctx, srv, logger)
		})
	}

	if cfg.Chat.Enabled {
		r, err := deps.runner(cfg.Prompts.Text, prompt.TextSystemPrompt, "chat", nil)
		if err != nil {
			return err
		}
		h := server.NewChatHandler(r, func(o *server.ChatOptions) {
			o.UploadLimit = cfg.Files.UploadLimit
			o.Logger = logger
		})
		srv := server.NewHTTPServer(cfg.Chat.Addr, h.Mux())
		g.Go(func() error {
			defer r.Shutdown()
			return server.Serve(gctx, srv, logger)
		})
	}

	logger.Info("convomesh.start", "voice", cfg.Voice.Enabled, "chat", cfg.Chat.Enabled, "model", cfg.Model.Provider, "storage", cfg.Storage.Driver)
	err = g.Wait()
	logger.Info("convomesh.stop")
	return err
}

// dependencies are shared by the runners of both surfaces.
type dependencies struct {
	stores *stores
	llm    model.Model
	deps   runner.Options
}

func newDependencies(ctx context.Context, c *config.Config) (*dependencies, error) {
	st, err := openStores(ctx, c)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*dependencies, error) {
		st.Close()
		return nil, err
	}

	mem, err := newMemory(c, st.facts)
	if err != nil {
		return fail(err)
	}
	llm, err := newModel(ctx, c)
	if err != nil {
		return fail(err)
	}
	kb, err := newKnowledge(ctx, c, st, logger)
	if err != nil {
		return fail(err)
	}

	return &dependencies{
		stores: st,
		llm:    llm,
		deps: runner.Options{
			Memory:        mem,
			Conversations: st.conversations,
			Knowledge:     kb,
			Directory:     st.directory,
			Normalizer:    normalize.New(func(o *normalize.Options) { o.MaxFileChars = c.Files.MaxChars }),
			PromptVars:    c.Prompts.Vars,
			Engine:        engineConfig(c.Engine),
			Logger:        logger,
		},
	}, nil
}

// runner builds the runner of one surface. A non-empty promptFile replaces
// fallback as the system prompt template.
func (d *dependencies) runner(promptFile, fallback, source string, frames *vision.Store) (*runner.Runner, error) {
	systemPrompt, err := loadPrompt(promptFile, fallback)
	if err != nil {
		return nil, err
	}
	return runner.New(d.llm, func(o *runner.Options) {
		*o = d.deps
		o.SystemPrompt = systemPrompt
		o.Source = source
		o.Frames = frames
	})
}

func loadPrompt(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	return string(data), nil
}

// engineConfig maps the configuration onto the engine. Every tool round
// costs a model step and the final reply one more.
func engineConfig(c config.EngineConfig) engine.Config {
	out := engine.DefaultConfig
	if c.MaxToolRounds > 0 {
		out.MaxSteps = c.MaxToolRounds + 1
	}
	if c.InboxSize > 0 {
		out.InboxSize = c.InboxSize
	}
	if c.MaxParallelTools > 0 {
		out.MaxParallelTools = c.MaxParallelTools
	}
	out.Stream = c.Stream
	return out
}
