package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := Render("sin marcas {", nil)
	require.NoError(t, err)
	assert.Equal(t, "sin marcas {", out)

	out, err = Render(`Hola {{default "amigo" .name}}, canal {{upper .surface}}: {{join ", " .topics}}`, map[string]any{
		"surface": "voz",
		"topics":  []any{"horarios", "pagos"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hola amigo, canal VOZ: horarios, pagos", out)

	_, err = Render("{{ .broken", nil)
	assert.Error(t, err)
}
