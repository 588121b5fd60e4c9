package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Queue.Policy != "drop_oldest" {
		t.Fatalf("expected default queue policy, got %s", cfg.Queue.Policy)
	}
	if cfg.Recognizer.Mode != "vosk" {
		t.Fatalf("expected default recognizer mode, got %s", cfg.Recognizer.Mode)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EARSHOT_AUDIO_SAMPLE_RATE", "8000")
	t.Setenv("EARSHOT_AUDIO_BLOCK_SIZE", "4000")
	t.Setenv("EARSHOT_AUDIO_DEVICE", "USB Microphone")
	t.Setenv("EARSHOT_RECOGNIZER_MODE", "mock")
	t.Setenv("EARSHOT_QUEUE_CAPACITY", "16")
	t.Setenv("EARSHOT_QUEUE_POLICY", "drop_newest")
	t.Setenv("EARSHOT_HISTORY_MODE", "persistent")
	t.Setenv("EARSHOT_HISTORY_PATH", "./tmp.db")
	t.Setenv("EARSHOT_BUS_ENABLED", "true")
	t.Setenv("EARSHOT_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("EARSHOT_BUS_EMBEDDED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Audio.SampleRate != 8000 || cfg.Audio.BlockSize != 4000 {
		t.Fatalf("expected audio overrides, got %+v", cfg.Audio)
	}
	if cfg.Audio.Device != "USB Microphone" {
		t.Fatalf("expected device override, got %q", cfg.Audio.Device)
	}
	if cfg.Recognizer.Mode != "mock" {
		t.Fatalf("expected recognizer mode override")
	}
	if cfg.Queue.Capacity != 16 || cfg.Queue.Policy != "drop_newest" {
		t.Fatalf("expected queue overrides, got %+v", cfg.Queue)
	}
	if cfg.History.Mode != "persistent" || cfg.History.Path != "./tmp.db" {
		t.Fatalf("expected history overrides, got %+v", cfg.History)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"stereo capture", func(c *Config) { c.Audio.Channels = 2 }},
		{"unknown recognizer mode", func(c *Config) { c.Recognizer.Mode = "cloud" }},
		{"exec without command", func(c *Config) { c.Recognizer.Mode = "exec"; c.Recognizer.Command = "" }},
		{"exec with unsupported sample rate", func(c *Config) {
			c.Recognizer.Mode = "exec"
			c.Recognizer.Command = "whisper-cli"
			c.Audio.SampleRate = 22050
		}},
		{"zero queue capacity", func(c *Config) { c.Queue.Capacity = 0 }},
		{"unknown queue policy", func(c *Config) { c.Queue.Policy = "block" }},
		{"unknown history mode", func(c *Config) { c.History.Mode = "forever" }},
		{"multi-word symbol key", func(c *Config) { c.Rewrite.Symbols = map[string]string{"open paren": "("} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
