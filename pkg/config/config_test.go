package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestParseConfigDefaults(t *testing.T) {
	is := is.New(t)

	cfg, err := ParseConfig(t.TempDir())
	is.NoErr(err)
	is.Equal(cfg.Storage.Tier, "local")
	is.Equal(time.Duration(cfg.Storage.CacheTTL), time.Hour)
	is.Equal(time.Duration(cfg.Lock.TTL), 5*time.Minute)
}

func TestParseConfigDurationUnits(t *testing.T) {
	is := is.New(t)
	dataPath := t.TempDir()

	// The config file accepts duration strings, including day units.
	is.NoErr(os.WriteFile(filepath.Join(dataPath, "config.yaml"), []byte("storage:\n  cache_ttl: 30m\nlock:\n  ttl: 90s\n"), 0o644))

	cfg, err := ParseConfig(dataPath)
	is.NoErr(err)
	is.Equal(time.Duration(cfg.Storage.CacheTTL), 30*time.Minute)
	is.Equal(time.Duration(cfg.Lock.TTL), 90*time.Second)

	// Environment values override the file.
	t.Setenv("OPENCODEHUB_LOCK_TTL", "1d")
	cfg, err = ParseConfig(dataPath)
	is.NoErr(err)
	is.Equal(time.Duration(cfg.Lock.TTL), 24*time.Hour)

	var d Duration
	is.True(d.UnmarshalText([]byte("not a duration")) != nil)
}
