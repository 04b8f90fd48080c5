package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl string `json:"base_url"`
	Copies  int    `json:"copies"`
}

func TestReadMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "tsprint.json5")

	err := os.WriteFile(name, []byte(`{
		// comments are fine, this is json5
		base_url: "https://portal.example.com",
		copies: 1,
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "tsprint.local.json5"), []byte(`{
		copies: 3,
	}`), 0600)
	require.NoError(t, err)

	cfg, err := Read[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "https://portal.example.com", cfg.BaseUrl)
	require.Equal(t, 3, cfg.Copies)
}

func TestReadLocalOnly(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "tsprint.json5")

	err := os.WriteFile(filepath.Join(dir, "tsprint.local.json5"), []byte(`{
		base_url: "https://local.example.com",
	}`), 0600)
	require.NoError(t, err)

	cfg, err := Read[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "https://local.example.com", cfg.BaseUrl)
}

func TestReadMissing(t *testing.T) {
	_, err := Read[testConfig](filepath.Join(t.TempDir(), "nope.json5"))
	require.True(t, os.IsNotExist(err))
}
