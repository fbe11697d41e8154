package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Characters that render like "-" or " " but break grep.
var lookalikeDashes = "\u2010\u2011\u2012\u2013\u2014\u2015\u2212\u00a0"

func TestSourceHasNoLookalikeDashes(t *testing.T) {
	root := filepath.Join("..", "..")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for i, line := range strings.Split(string(b), "\n") {
			assert.False(t, strings.ContainsAny(line, lookalikeDashes), "%s:%d: %q", path, i+1, line)
		}
		return nil
	})
	require.NoError(t, err)
}
