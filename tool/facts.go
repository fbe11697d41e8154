package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/convomesh/core"
)

// Names of the mutating tools.
const (
	SaveFactName   = "save_fact"
	DeleteFactName = "delete_fact"
)

// FactManager writes facts on behalf of a session. It resolves the target
// scope from the session identity.
type FactManager interface {
	SaveFact(ctx context.Context, key, value string, public bool) (core.Scope, error)
	DeleteFact(ctx context.Context, key string) (bool, error)
}

type saveFactTool struct{ facts FactManager }

// NewSaveFactTool returns the save_fact tool.
func NewSaveFactTool(facts FactManager) Tool { return &saveFactTool{facts: facts} }

func (t *saveFactTool) Name() string { return SaveFactName }

func (t *saveFactTool) Description() string {
	return "Guarda un dato importante en la memoria persistente. " +
		"scope='user' (por defecto) guarda un dato personal del usuario actual; " +
		"scope='public' guarda un dato compartido con todos los usuarios."
}

func (t *saveFactTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key":   map[string]any{"type": "string", "description": "Nombre del dato (ej: 'nombre', 'color_favorito')"},
			"value": map[string]any{"type": "string", "description": "Valor a recordar"},
			"scope": map[string]any{
				"type":        "string",
				"enum":        []string{"user", "public"},
				"description": "'user' para datos personales, 'public' para datos de la comunidad",
			},
		},
		"required": []string{"key", "value"},
	}
}

func (t *saveFactTool) Call(tc *core.ToolContext, args map[string]any) (Result, error) {
	key, value := stringArg(args, "key"), stringArg(args, "value")
	if key == "" || value == "" {
		return Fail("Se requiere clave y valor"), nil
	}
	public := false
	switch scope := strings.ToLower(stringArg(args, "scope")); scope {
	case "", "user":
	case "public", "global":
		public = true
	default:
		return Fail(fmt.Sprintf("Scope desconocido: %s. Usa 'user' o 'public'.", scope)), nil
	}

	scope, err := t.facts.SaveFact(tc.Context(), key, value, public)
	if err != nil {
		tc.Logger().Error("tool.save_fact.failed", "key", key, "error", err.Error())
		return Fail("Error de base de datos"), nil
	}
	tier := "PERSONAL"
	if scope.IsGlobal() {
		tier = "PÚBLICA/COMUNITARIA"
	}
	msg := fmt.Sprintf("Entendido. He guardado '%s' = '%s' en la base de datos %s.", key, value, tier)
	if !public && scope.IsGlobal() {
		msg += " No hay un usuario identificado, así que el dato quedó como público."
	}
	return OK(msg).WithData("scope", scope.String()), nil
}

type deleteFactTool struct{ facts FactManager }

// NewDeleteFactTool returns the delete_fact tool.
func NewDeleteFactTool(facts FactManager) Tool { return &deleteFactTool{facts: facts} }

func (t *deleteFactTool) Name() string { return DeleteFactName }

func (t *deleteFactTool) Description() string {
	return "Borra un dato de la memoria persistente cuando el usuario pide olvidarlo."
}

func (t *deleteFactTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key": map[string]any{"type": "string", "description": "Nombre del dato a borrar"},
		},
		"required": []string{"key"},
	}
}

func (t *deleteFactTool) Call(tc *core.ToolContext, args map[string]any) (Result, error) {
	key := stringArg(args, "key")
	if key == "" {
		return Fail("Falta key."), nil
	}
	removed, err := t.facts.DeleteFact(tc.Context(), key)
	if err != nil {
		tc.Logger().Error("tool.delete_fact.failed", "key", key, "error", err.Error())
	}
	if err != nil || !removed {
		return Fail("No se encontró el dato o hubo un error."), nil
	}
	return OK(fmt.Sprintf("Dato '%s' borrado.", key)), nil
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

// stringsArg accepts a JSON array of strings or a single string.
func stringsArg(args map[string]any, name string) []string {
	var out []string
	switch v := args[name].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}
