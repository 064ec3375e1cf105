package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Contract: each level emits its own lines and everything more severe.
func TestDefaultLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     Level
		wantError bool
		wantWarn  bool
		wantInfo  bool
		wantDebug bool
	}{
		{LevelError, true, false, false, false},
		{LevelWarn, true, true, false, false},
		{LevelInfo, true, true, true, false},
		{LevelDebug, true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)

			logger.Errorf("error %d", 1)
			logger.Warnf("warn %d", 2)
			logger.Infof("info %d", 3)
			logger.Debugf("debug %d", 4)

			output := buf.String()
			assert.Equal(t, tt.wantError, strings.Contains(output, "ERROR error 1"))
			assert.Equal(t, tt.wantWarn, strings.Contains(output, "WARN warn 2"))
			assert.Equal(t, tt.wantInfo, strings.Contains(output, "INFO info 3"))
			assert.Equal(t, tt.wantDebug, strings.Contains(output, "DEBUG debug 4"))
		})
	}
}

func TestDiscardLogger(t *testing.T) {
	Discard.Errorf("error %d", 1)
	Discard.Warnf("warn %d", 1)
	Discard.Infof("info %d", 1)
	Discard.Debugf("debug %d", 1)
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelError, "ERROR"},
		{LevelWarn, "WARN"},
		{LevelInfo, "INFO"},
		{LevelDebug, "DEBUG"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestNamespaceConstants(t *testing.T) {
	for _, ns := range []string{NSConfig, NSCache, NSSample, NSDD, NSSession, NSBundle} {
		assert.True(t, strings.HasPrefix(ns, "["), "namespace %q should be in [name] format", ns)
		assert.True(t, strings.HasSuffix(ns, "] "), "namespace %q should end with a space", ns)
	}
}

// Contract: IsNil detects typed-nil loggers and OrDefault replaces them.
func TestOrDefault_TypedNil(t *testing.T) {
	var typed *DefaultLogger
	var l Logger = typed

	require.True(t, IsNil(l))
	require.True(t, IsNil(nil))
	require.False(t, IsNil(Discard))

	assert.NotNil(t, OrDefault(l))
	assert.Same(t, Discard, OrDefault(Discard))
}
