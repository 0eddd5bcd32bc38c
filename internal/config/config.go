// Package config reads the generator settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var ErrInvalidValue = errors.New("invalid configuration value")

const (
	EnvOutputDir = "SPECIMEN_OUTPUT_DIR"
	EnvMountDir  = "SPECIMEN_MOUNT_DIR"
	EnvUnicodeDB = "SPECIMEN_UNICODE_DB"
	EnvFakeTime  = "SPECIMEN_FAKE_TIME"

	DefaultOutputDir = "specimens"
	DefaultUnicodeDB = "/usr/share/unicode/UnicodeData.txt"

	// DefaultFakeTime is 2020-09-13, the timestamp every image carries.
	DefaultFakeTime int64 = 1600000000
)

type Config struct {
	OutputDir string
	MountDir  string
	UnicodeDB string
	FakeTime  int64 // 0 keeps real timestamps
}

// FromEnv reads the configuration, falling back to the defaults for unset
// variables.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		OutputDir: get(EnvOutputDir, DefaultOutputDir),
		MountDir:  get(EnvMountDir, filepath.Join(os.TempDir(), "specimen-mnt")),
		UnicodeDB: get(EnvUnicodeDB, DefaultUnicodeDB),
		FakeTime:  DefaultFakeTime,
	}

	if v := get(EnvFakeTime, ""); v != "" {
		t, err := strconv.ParseInt(v, 10, 64)
		if err != nil || t < 0 {
			return Config{}, fmt.Errorf("%w: %s=%q", ErrInvalidValue, EnvFakeTime, v)
		}
		cfg.FakeTime = t
	}

	return cfg, nil
}
