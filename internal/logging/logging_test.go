package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithOutput(t *testing.T) {
	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithOutput("warn", &buf)

		logger.Info().Msg("hidden")
		logger.Warn().Msg("visible")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "visible")
	})

	t.Run("unknown level defaults to info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithOutput("bogus", &buf)

		logger.Debug().Msg("hidden")
		logger.Info().Msg("visible")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "visible")
	})
}
