package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/convomesh/core"
	"golang.org/x/sync/errgroup"
)

// Names of the reporting tools.
const (
	CountUsersName              = "count_users"
	CountUsersBySubcategoryName = "count_users_by_subcategory"
)

// subcategoryFanOut bounds concurrent directory lookups per call.
const subcategoryFanOut = 4

// NewCountUsersTool returns the count_users tool.
func NewCountUsersTool(dir core.Directory) Tool {
	return NewFunctionTool(
		CountUsersName,
		"Cuenta el total de usuarios registrados en Tu Guía AR.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, _ map[string]any) (Result, error) {
			n, err := dir.CountUsers(tc.Context())
			if err != nil {
				tc.Logger().Error("tool.count_users.failed", "error", err.Error())
				return Fail("No se pudo obtener el conteo"), nil
			}
			return OK(fmt.Sprintf("Hay %d usuarios registrados en Tu Guia AR.", n)).WithData("total_usuarios", n), nil
		},
	)
}

// NewCountUsersBySubcategoryTool returns the count_users_by_subcategory tool.
// Subcategories are looked up concurrently; the message keeps request order.
func NewCountUsersBySubcategoryTool(dir core.Directory) Tool {
	return NewFunctionTool(
		CountUsersBySubcategoryName,
		"Cuenta usuarios de Tu Guía AR en una o más subcategorías (ej: plomeros, electricistas).",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"subcategory_names": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Nombres de las subcategorías",
				},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (Result, error) {
			names := stringsArg(args, "subcategory_names")
			if len(names) == 0 {
				return Fail("Faltan subcategorias"), nil
			}
			counts := make([]core.SubcategoryCount, len(names))
			g, ctx := errgroup.WithContext(tc.Context())
			g.SetLimit(subcategoryFanOut)
			for i, name := range names {
				g.Go(func() error {
					c, err := dir.CountBySubcategory(ctx, name)
					if err != nil {
						return fmt.Errorf("count %q: %w", name, err)
					}
					counts[i] = c
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				tc.Logger().Error("tool.count_by_subcategory.failed", "error", err.Error())
				return Fail("Error: " + err.Error()), nil
			}
			return OK(FormatSubcategoryCounts(counts)).WithData("results", counts), nil
		},
	)
}

// FormatSubcategoryCounts renders "name: N usuarios" or "name: no encontrada"
// per entry, joined by ". ".
func FormatSubcategoryCounts(counts []core.SubcategoryCount) string {
	lines := make([]string, 0, len(counts))
	for _, c := range counts {
		if c.Found {
			lines = append(lines, fmt.Sprintf("%s: %d usuarios", c.Name, c.Count))
		} else {
			lines = append(lines, fmt.Sprintf("%s: no encontrada", c.Query))
		}
	}
	return strings.Join(lines, ". ")
}
