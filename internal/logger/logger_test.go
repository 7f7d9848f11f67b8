package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("development defaults to debug", func(t *testing.T) {
		l := New("")
		require.Equal(t, zerolog.DebugLevel, l.GetLevel())
	})

	t.Run("production logs at info", func(t *testing.T) {
		l := New("production")
		require.Equal(t, zerolog.InfoLevel, l.GetLevel())
	})
}

func TestFormatLevel(t *testing.T) {
	require.Contains(t, formatLevel("info"), "INF")
	require.Contains(t, formatLevel("error"), "ERR")
	require.Equal(t, "X  ", formatLevel("x"))
}
