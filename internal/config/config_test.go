package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/victornm/quizclient/internal/config"
)

type testConfig struct {
	API struct {
		BaseURL string
		Timeout time.Duration
	}

	Storage struct {
		Driver string
		File   struct {
			Dir string
		}
	}
}

func defaults() testConfig {
	var c testConfig
	c.API.BaseURL = "http://localhost:8000/api"
	c.Storage.Driver = "file"
	c.Storage.File.Dir = ".quiz"
	return c
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		file   string
		env    map[string]string
		assert func(t *testing.T, c testConfig)
	}{
		"defaults are kept when no file is given": {
			assert: func(t *testing.T, c testConfig) {
				require.Equal(t, defaults(), c)
			},
		},

		"file values override defaults": {
			file: "api:\n  baseurl: http://quiz.example.com/api\n  timeout: 5s\nstorage:\n  driver: redis\n",
			assert: func(t *testing.T, c testConfig) {
				require.Equal(t, "http://quiz.example.com/api", c.API.BaseURL)
				require.Equal(t, 5*time.Second, c.API.Timeout)
				require.Equal(t, "redis", c.Storage.Driver)
				require.Equal(t, ".quiz", c.Storage.File.Dir)
			},
		},

		"environment overrides file": {
			file: "storage:\n  driver: redis\n",
			env:  map[string]string{"STORAGE_DRIVER": "postgres"},
			assert: func(t *testing.T, c testConfig) {
				require.Equal(t, "postgres", c.Storage.Driver)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var file string
			if tt.file != "" {
				file = filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(file, []byte(tt.file), 0o600))
			}

			c := defaults()
			require.NoError(t, config.Load(file, &c))
			tt.assert(t, c)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	c := defaults()
	require.Error(t, config.Load(filepath.Join(t.TempDir(), "nope.yaml"), &c))
}
