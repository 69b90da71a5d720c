package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	l, err := New("jackpot-worker", "prod", "")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))

	l, err = New("jackpot-worker", "local", "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l, err = New("jackpot-worker", "local", "warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))

	_, err = New("jackpot-worker", "prod", "loud")
	assert.Error(t, err)
}
