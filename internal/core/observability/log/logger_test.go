package log

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	newFileLogger := func(t *testing.T) *Logger {
		t.Helper()
		return New(Config{
			Level:    LevelDebug,
			FilePath: filepath.Join(t.TempDir(), "test.log"),
		})
	}

	t.Run("NilErrorFieldDoesNotPanic", func(t *testing.T) {
		lg := newFileLogger(t)
		defer func() { _ = lg.Sync() }()

		require.NotPanics(t, func() {
			lg.Debug("sample failed", Error(nil))
			lg.Warn("sample failed", Error(nil), String("source", "cpu"))
		})
	})

	t.Run("AllFieldTypesConvert", func(t *testing.T) {
		lg := newFileLogger(t)
		defer func() { _ = lg.Sync() }()

		require.NotPanics(t, func() {
			lg.Info("fields",
				Any("any", struct{ N int }{1}),
				Bool("bool", true),
				Duration("duration", time.Second),
				Float64("float", 1.5),
				Int("int", 1),
				Int64("int64", 2),
				String("string", "v"),
				Time("time", time.Now()),
				Uint64("uint64", 3),
				Error(errors.New("boom")),
			)
		})
	})

	t.Run("LevelRoundTrip", func(t *testing.T) {
		lg := newFileLogger(t)
		lg.SetLevel(LevelWarn)
		require.Equal(t, LevelWarn, lg.GetLevel())
	})
}
