package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/convomesh/config"
	"github.com/hupe1980/convomesh/engine"
	"github.com/hupe1980/convomesh/knowledge"
	"github.com/hupe1980/convomesh/logging"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "CONVOMESH_STORAGE_DRIVER", "CONVOMESH_SQLITE_PATH", "CONVOMESH_LOG_BACKEND", "CONVOMESH_LOG_FORMAT", "CONVOMESH_DELETE_POLICY"} {
		t.Setenv(k, "")
	}
}

// writeConfig saves a configuration using driver below a temp directory.
func writeConfig(t *testing.T, driver string) string {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	c := config.Default()
	c.Storage.Driver = driver
	c.Storage.Path = filepath.Join(dir, "data", "convomesh.db")
	c.Logging.Format = "text"
	path := filepath.Join(dir, "convomesh.yaml")
	require.NoError(t, c.Save(path))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	factsUser = ""
	verbose = false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestFactsCommands(t *testing.T) {
	path := writeConfig(t, "sqlite")

	out, err := execute(t, "--config", path, "facts", "set", "idioma", "es")
	require.NoError(t, err)
	assert.Equal(t, "saved idioma (global)\n", out)

	_, err = execute(t, "--config", path, "facts", "set", "color", "azul", "--user", "ana")
	require.NoError(t, err)

	out, err = execute(t, "--config", path, "facts", "list", "--user", "ana")
	require.NoError(t, err)
	assert.Equal(t, "GLOBAL_idioma: es\nUSER_color: azul\n", out)

	out, err = execute(t, "--config", path, "facts", "list")
	require.NoError(t, err)
	assert.Equal(t, "GLOBAL_idioma: es\n", out)

	out, err = execute(t, "--config", path, "facts", "delete", "color", "--user", "ana")
	require.NoError(t, err)
	assert.Equal(t, "deleted color\n", out)

	_, err = execute(t, "--config", path, "facts", "delete", "color", "--user", "ana")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFactsSetRejectsEmptyValue(t *testing.T) {
	path := writeConfig(t, "sqlite")
	_, err := execute(t, "--config", path, "facts", "set", "idioma", " ")
	require.Error(t, err)
}

func TestFactsRequirePersistentStorage(t *testing.T) {
	path := writeConfig(t, "memory")
	_, err := execute(t, "--config", path, "facts", "list")
	require.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	path := writeConfig(t, "sqlite")
	out, err := execute(t, "--config", path, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema version 2\n", out)

	path = writeConfig(t, "memory")
	_, err = execute(t, "--config", path, "migrate")
	require.Error(t, err)
}

func TestIngestRequiresPostgres(t *testing.T) {
	path := writeConfig(t, "sqlite")
	_, err := execute(t, "--config", path, "ingest", "doc.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestNewLogger(t *testing.T) {
	t.Run("slog", func(t *testing.T) {
		var buf bytes.Buffer
		l, sync, err := newLogger(config.LoggingConfig{Level: "info", Format: "json", Backend: "slog"}, &buf)
		require.NoError(t, err)
		assert.Nil(t, sync)
		l.Debug("hidden")
		l.Info("visible", "key", "value")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"msg":"visible"`)
		assert.Contains(t, buf.String(), `"key":"value"`)
	})

	t.Run("zap", func(t *testing.T) {
		l, sync, err := newLogger(config.LoggingConfig{Level: "warn", Backend: "zap"}, io.Discard)
		require.NoError(t, err)
		assert.NotNil(t, l)
		assert.NotNil(t, sync)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := newLogger(config.LoggingConfig{Backend: "stdout"}, io.Discard)
		require.Error(t, err)
	})
}

func TestEngineConfig(t *testing.T) {
	got := engineConfig(config.EngineConfig{MaxToolRounds: 5, InboxSize: 2, MaxParallelTools: 1, Stream: false})
	assert.Equal(t, engine.Config{MaxSteps: 6, InboxSize: 2, MaxParallelTools: 1, Stream: false}, got)

	got = engineConfig(config.EngineConfig{Stream: true})
	assert.Equal(t, engine.DefaultConfig, got)
}

func TestNewModel(t *testing.T) {
	c := config.Default()
	c.Model.Provider = "mock"
	c.Model.Name = "echo"
	m, err := newModel(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "mock", m.Info().Provider)

	c.Model.Provider = "openai"
	c.APIKeys.OpenAI = "sk-test"
	m, err = newModel(context.Background(), c)
	require.NoError(t, err)
	assert.NotNil(t, m)

	c.Model.Provider = "llama"
	_, err = newModel(context.Background(), c)
	require.Error(t, err)
}

func TestNewKnowledge(t *testing.T) {
	logger = logging.NoOpLogger{}
	ctx := context.Background()
	doc := filepath.Join(t.TempDir(), "horarios.md")
	require.NoError(t, os.WriteFile(doc, []byte("La oficina abre a las nueve.\n\nLos sabados permanece cerrada."), 0o600))

	c := config.Default()
	c.Embeddings.Provider = "none"

	t.Run("disabled", func(t *testing.T) {
		c := *c
		c.Knowledge.Enabled = false
		kb, err := newKnowledge(ctx, &c, &stores{}, logger)
		require.NoError(t, err)
		assert.Nil(t, kb)
	})

	t.Run("no documents", func(t *testing.T) {
		kb, err := newKnowledge(ctx, c, &stores{}, logger)
		require.NoError(t, err)
		assert.Nil(t, kb)
	})

	t.Run("keyword index", func(t *testing.T) {
		c := *c
		c.Knowledge.Documents = []string{doc}
		c.Knowledge.ChunkSize = 20
		kb, err := newKnowledge(ctx, &c, &stores{}, logger)
		require.NoError(t, err)
		require.NotNil(t, kb)

		text, err := kb.Lookup(ctx, "cuando abre la oficina")
		require.NoError(t, err)
		assert.Contains(t, text, "horarios.md")
		assert.Contains(t, text, "La oficina abre a las nueve.")
		assert.NotContains(t, text, "sabados")

		text, err = kb.Lookup(ctx, "piscina")
		require.NoError(t, err)
		assert.Equal(t, knowledge.NoResults, text)
	})

	t.Run("missing document", func(t *testing.T) {
		c := *c
		c.Knowledge.Documents = []string{filepath.Join(t.TempDir(), "missing.md")}
		_, err := newKnowledge(ctx, &c, &stores{}, logger)
		require.Error(t, err)
	})
}

func TestDependenciesBuildRunners(t *testing.T) {
	clearEnv(t)
	logger = logging.NoOpLogger{}
	c := config.Default()
	c.Model.Provider = "mock"
	c.Knowledge.Enabled = false
	c.Prompts.Vars = map[string]any{"Name": "Red Futura"}

	deps, err := newDependencies(context.Background(), c)
	require.NoError(t, err)
	defer deps.stores.Close()

	promptFile := filepath.Join(t.TempDir(), "voice.tmpl")
	require.NoError(t, os.WriteFile(promptFile, []byte("Asistente de {{.Name}}"), 0o600))
	r, err := deps.runner(promptFile, "", "voice", nil)
	require.NoError(t, err)
	r.Shutdown()

	r, err = deps.runner("", "fallback", "chat", nil)
	require.NoError(t, err)
	r.Shutdown()

	_, err = deps.runner(filepath.Join(t.TempDir(), "missing.tmpl"), "", "voice", nil)
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.tmpl")
	require.NoError(t, os.WriteFile(bad, []byte("{{.Name"), 0o600))
	_, err = deps.runner(bad, "", "voice", nil)
	require.Error(t, err)
}
