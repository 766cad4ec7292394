package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTemperature(t *testing.T) {
	cases := []struct {
		name string
		body string
		want float32
	}{
		{"unset uses default", "openai:\n  chat_model: gpt-4o\n", 0.2},
		{"explicit zero kept", "openai:\n  temperature: 0\n", 0},
		{"explicit value kept", "openai:\n  temperature: 0.7\n", 0.7},
		{"out of range falls back", "openai:\n  temperature: -1\n", 0.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tc.body))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.OpenAI.Temperature != tc.want {
				t.Errorf("temperature = %v, want %v", cfg.OpenAI.Temperature, tc.want)
			}
		})
	}
}

func TestLoadTemperatureFromEnv(t *testing.T) {
	t.Setenv("MANIM_OPENAI_TEMPERATURE", "0")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAI.Temperature != 0 {
		t.Errorf("temperature = %v", cfg.OpenAI.Temperature)
	}
}
