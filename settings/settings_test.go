package settings_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdancer/reldb/settings"
)

func TestGetSettingsIsASingleton(t *testing.T) {
	settings.Reset()
	a := settings.GetSettings()
	a.DataDir = "/tmp/custom"

	b := settings.GetSettings()
	require.Same(t, a, b)
	require.Equal(t, "/tmp/custom", b.DataDir)
}

func TestDefaults(t *testing.T) {
	settings.Reset()
	a := settings.GetSettings()
	require.Equal(t, "./datafiles", a.DataDir)
	require.Equal(t, 1776, a.Port)
}
