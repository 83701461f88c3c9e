package command

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func TestConfig_Validate(t *testing.T) {
	tests := map[string]struct {
		config    Config
		expErrStr []string
	}{
		"valid": {
			config: Config{TickInterval: "2s", AutosaveEvery: 30, WorldDir: "saves/rimworld"},
		},
		"bad tick interval": {
			config:    Config{TickInterval: "soon", WorldDir: "saves/rimworld"},
			expErrStr: []string{"parsing tick_interval"},
		},
		"tick interval too short": {
			config:    Config{TickInterval: "10ms", WorldDir: "saves/rimworld"},
			expErrStr: []string{"tick_interval must be at least 100ms"},
		},
		"bad tick timeout": {
			config:    Config{TickInterval: "1s", TickTimeout: "-5s", WorldDir: "saves/rimworld"},
			expErrStr: []string{"tick_timeout must be positive"},
		},
		"everything wrong": {
			config: Config{
				TickInterval:  "1s",
				AutosaveEvery: -1,
				Colony:        -2,
				Nats:          NatsConfig{Port: 70000, StartTimeout: "later"},
			},
			expErrStr: []string{
				"autosave_every must not be negative",
				"world_dir is required",
				"colony must not be negative",
				"parsing start_timeout",
				"nats port 70000 out of range",
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.config.Validate()
			if len(tt.expErrStr) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			for _, s := range tt.expErrStr {
				testutil.AssertErrorContains(t, err, s)
			}
		})
	}
}

func TestConfig_TickLength(t *testing.T) {
	c := Config{TickInterval: "1500ms"}
	testutil.AssertEqual(t, "tick length", c.tickLength(), 1500*time.Millisecond)
	testutil.AssertEqual(t, "unbounded", c.tickTimeout(), time.Duration(0))

	c.TickTimeout = "1m"
	testutil.AssertEqual(t, "tick timeout", c.tickTimeout(), time.Minute)
}

func TestConfig_LoadPersistConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.yaml")
	if err := os.WriteFile(path, []byte("save_dir: "+dir+"\ncompress: true\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := Config{PersistConfig: path}
	pc, err := c.loadPersistConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "save dir", pc.SaveDir, dir)
	testutil.AssertEqual(t, "compress", pc.Compress, true)

	c.PersistConfig = filepath.Join(dir, "missing.yaml")
	_, err = c.loadPersistConfig()
	testutil.AssertErrorContains(t, err, "loading persist config")
}

func TestMetricsConfig_BuildServer(t *testing.T) {
	m := MetricsConfig{}
	testutil.AssertEqual(t, "disabled", m.buildServer(nil) == nil, true)

	m.Addr = "127.0.0.1:0"
	testutil.AssertEqual(t, "enabled", m.buildServer(nil) != nil, true)
}
