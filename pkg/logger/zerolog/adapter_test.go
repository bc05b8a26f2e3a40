package zerolog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/raykavin/martinrun/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestAdapter_JSON(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	zl, err := New(Options{Level: "info", JSON: true, Out: buf})
	require.NoError(t, err)

	log := NewAdapter(zl)
	log.WithField("pair", "BTCUSDT").WithError(errors.New("boom")).Infof("run %d", 1)
	log.Debug("hidden")

	out := buf.String()
	require.Contains(t, out, `"pair":"BTCUSDT"`)
	require.Contains(t, out, `"error":"boom"`)
	require.Contains(t, out, "run 1")
	require.NotContains(t, out, "hidden")
}

func TestAdapter_Level(t *testing.T) {
	zl, err := New(Options{Level: "warn", JSON: true, Out: bytes.NewBuffer(nil)})
	require.NoError(t, err)

	log := NewAdapter(zl)
	require.Equal(t, logger.WarnLevel, log.GetLevel())

	log.SetLevel(logger.DebugLevel)
	require.Equal(t, logger.DebugLevel, log.GetLevel())
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
}
