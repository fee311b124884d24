package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Writer.APIKey != "${OPENAI_API_KEY}" {
		t.Error("expected writer API key placeholder")
	}
	if cfg.Pipeline.MaxRetryAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Pipeline.MaxRetryAttempts)
	}
	if cfg.Pipeline.MinBatchSize < 1 {
		t.Error("min batch size must be at least 1")
	}
	if cfg.Pipeline.MaxBatchSize < cfg.Pipeline.MinBatchSize {
		t.Error("max batch size must be >= min batch size")
	}
	if cfg.Pipeline.SafetyMargin <= 0 || cfg.Pipeline.SafetyMargin >= 1 {
		t.Errorf("safety margin out of range: %v", cfg.Pipeline.SafetyMargin)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestProviderConfig_ToOpenAIConfig(t *testing.T) {
	os.Setenv("TEST_WRITER_KEY", "wk-123")
	defer os.Unsetenv("TEST_WRITER_KEY")

	p := ProviderConfig{
		Type:      "openai",
		Model:     "openai/gpt-5-mini",
		APIKey:    "${TEST_WRITER_KEY}",
		RateLimit: 2.5,
	}
	oc := p.ToOpenAIConfig()
	if oc.APIKey != "wk-123" {
		t.Errorf("expected resolved key, got %s", oc.APIKey)
	}
	if oc.Model != p.Model || oc.RateLimit != 2.5 {
		t.Errorf("config not carried over: %+v", oc)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
writer:
  model: "test/model"
pipeline:
  max_retry_attempts: 5
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Writer.Model != "test/model" {
			t.Errorf("expected test/model, got %s", cfg.Writer.Model)
		}
		if cfg.Pipeline.MaxRetryAttempts != 5 {
			t.Errorf("expected 5, got %d", cfg.Pipeline.MaxRetryAttempts)
		}
	})

	t.Run("defaults fill unset fields", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		if err := os.WriteFile(configFile, []byte("writer:\n  model: other\n"), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Pipeline.MaxConcurrentCalls; got != DefaultConfig().Pipeline.MaxConcurrentCalls {
			t.Errorf("default concurrency not applied: %d", got)
		}
	})
}

func TestWriteDefault(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := WriteDefault(configFile); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if len(data) == 0 || data[0] != '#' {
		t.Error("expected commented header")
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to load written config: %v", err)
	}
	if mgr.Get().Writer.Model != DefaultConfig().Writer.Model {
		t.Errorf("written config does not round trip: %+v", mgr.Get().Writer)
	}
}

func TestManager_OnChange(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("writer:\n  model: initial\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 2 {
		t.Errorf("expected 2 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_WatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("writer:\n  model: initial\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var callbackCount atomic.Int32
	var lastModel atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastModel.Store(cfg.Writer.Model)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("writer:\n  model: updated\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Error("callback was not invoked after config file change")
	}
	if v := lastModel.Load(); v != "updated" {
		t.Errorf("callback received wrong value: %v", v)
	}
}
