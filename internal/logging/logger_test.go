package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		logger := New(level)
		assert.NotNil(t, logger, level)
		assert.NotPanics(t, func() {
			logger.Info().Str("level", level).Msg("Logger ready")
		})
	}
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard().Error().Msg("dropped")
	})
}
