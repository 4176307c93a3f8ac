package pixelscacheconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/pixelsdb/pixels-cache-go/pixelscacheconfig"
)

func TestLoadParsesJWCC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixels-cache.jsonc")
	doc := `{
		// cache file location, overrides the default
		"cache.location": "/mnt/fast/pixels.cache",
		"cache.size": 2147483648,
		"cache.enabled": true,
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := pixelscacheconfig.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/mnt/fast/pixels.cache", cfg.CacheLocation)
	require.Equal(t, int64(2147483648), cfg.CacheSize)
	require.True(t, cfg.CacheEnabled)
	// Unset keys keep Default()'s values.
	require.Equal(t, pixelscacheconfig.Default().IndexLocation, cfg.IndexLocation)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := pixelscacheconfig.Load(filepath.Join(t.TempDir(), "missing.jsonc"))
	require.Error(t, err)
}

func TestBindFlagsOverridesFileValue(t *testing.T) {
	cfg := pixelscacheconfig.Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	pixelscacheconfig.BindFlags(fs, &cfg)

	require.NoError(t, fs.Parse([]string{"--cache.size=999", "--cache.enabled=false"}))
	require.Equal(t, int64(999), cfg.CacheSize)
	require.False(t, cfg.CacheEnabled)
}

func TestLeaseTTLConversion(t *testing.T) {
	cfg := pixelscacheconfig.Default()
	cfg.LeaseTTLSeconds = 45
	require.Equal(t, int64(45), int64(cfg.LeaseTTL().Seconds()))
}
