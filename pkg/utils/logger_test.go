package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewSugaredLogger_Verbose(t *testing.T) {
	t.Parallel()

	l, err := NewSugaredLogger(true)
	require.NoError(t, err)
	require.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNewSugaredLogger_Production(t *testing.T) {
	t.Parallel()

	l, err := NewSugaredLogger(false)
	require.NoError(t, err)

	core := l.Desugar().Core()
	require.False(t, core.Enabled(zapcore.DebugLevel))
	require.True(t, core.Enabled(zapcore.InfoLevel))
}
