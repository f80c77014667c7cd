package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildInputPlugins_RegistersPrimitives(t *testing.T) {
	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: true,
		TCPAddr:    "127.0.0.1:4000",
	})

	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Name() != "tcp" {
		t.Fatalf("plugins[0] name = %q, want %q", plugins[0].Name(), "tcp")
	}
	if plugins[1].Name() != "stdin" {
		t.Fatalf("plugins[1] name = %q, want %q", plugins[1].Name(), "stdin")
	}
	if !plugins[0].Enabled() {
		t.Fatal("expected tcp plugin to be enabled when TCPEnabled=true")
	}
}

func TestBuildInputPlugins_TCPDisabled(t *testing.T) {
	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: false,
		TCPAddr:    "127.0.0.1:4000",
	})

	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Enabled() {
		t.Fatal("expected tcp plugin to be disabled when TCPEnabled=false")
	}
}

func TestLoadConfig_AddressResolution(t *testing.T) {
	resetDistillEnv(t)

	tests := []struct {
		name         string
		configYAML   string
		wantErr      bool
		wantHost     string
		wantTCPAddr  string
		wantAPIAddr  string
		wantOTLPAddr string
		errSubstring string
	}{
		{
			name: "defaults to localhost host",
			configYAML: `
tcp-port: 4100
api-port: 3100
otlp-port: 4417
`,
			wantHost:     "127.0.0.1",
			wantTCPAddr:  "127.0.0.1:4100",
			wantAPIAddr:  "127.0.0.1:3100",
			wantOTLPAddr: "127.0.0.1:4417",
		},
		{
			name: "host applies to derived addresses",
			configYAML: `
host: 0.0.0.0
tcp-port: 4200
api-port: 3200
`,
			wantHost:     "0.0.0.0",
			wantTCPAddr:  "0.0.0.0:4200",
			wantAPIAddr:  "0.0.0.0:3200",
			wantOTLPAddr: "0.0.0.0:4317",
		},
		{
			name: "explicit addresses override host and ports",
			configYAML: `
host: 0.0.0.0
tcp-port: 4300
api-port: 3300
tcp-addr: 10.0.0.5:9999
api-addr: 10.0.0.5:8888
otlp-addr: 10.0.0.5:7777
`,
			wantHost:     "0.0.0.0",
			wantTCPAddr:  "10.0.0.5:9999",
			wantAPIAddr:  "10.0.0.5:8888",
			wantOTLPAddr: "10.0.0.5:7777",
		},
		{
			name: "out-of-range tcp port rejected",
			configYAML: `
tcp-port: 99999
`,
			wantErr:      true,
			errSubstring: "invalid tcp-port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeTempConfig(t, tt.configYAML)
			cfg, err := loadConfig(configPath)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errSubstring != "" && !strings.Contains(err.Error(), tt.errSubstring) {
					t.Fatalf("error = %q, want substring %q", err.Error(), tt.errSubstring)
				}
				return
			}

			if err != nil {
				t.Fatalf("loadConfig returned error: %v", err)
			}

			if cfg.Host != tt.wantHost {
				t.Fatalf("Host = %q, want %q", cfg.Host, tt.wantHost)
			}
			if cfg.TCPAddr != tt.wantTCPAddr {
				t.Fatalf("TCPAddr = %q, want %q", cfg.TCPAddr, tt.wantTCPAddr)
			}
			if cfg.APIAddr != tt.wantAPIAddr {
				t.Fatalf("APIAddr = %q, want %q", cfg.APIAddr, tt.wantAPIAddr)
			}
			if cfg.OTLPAddr != tt.wantOTLPAddr {
				t.Fatalf("OTLPAddr = %q, want %q", cfg.OTLPAddr, tt.wantOTLPAddr)
			}
		})
	}
}

func TestLoadConfig_AnalysisDefaults(t *testing.T) {
	resetDistillEnv(t)

	configPath := writeTempConfig(t, `
tcp-port: 4000
api-port: 3000
`)
	cfg, err := loadConfig(configPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.MaxPatterns != 20 {
		t.Errorf("MaxPatterns = %d, want 20", cfg.MaxPatterns)
	}
	if cfg.WindowLimit != 50_000 {
		t.Errorf("WindowLimit = %d, want 50000", cfg.WindowLimit)
	}
	if cfg.DriftThreshold != 0.5 {
		t.Errorf("DriftThreshold = %v, want 0.5", cfg.DriftThreshold)
	}
	if cfg.Retention != 30 {
		t.Errorf("Retention = %d, want 30", cfg.Retention)
	}
}

func TestLoadConfig_MaskRulesAndLogging(t *testing.T) {
	resetDistillEnv(t)

	configPath := writeTempConfig(t, `
mask-rules: /etc/distill/masks.yml
log-level: debug
log-format: json
`)
	cfg, err := loadConfig(configPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.MaskRulesPath != "/etc/distill/masks.yml" {
		t.Errorf("MaskRulesPath = %q", cfg.MaskRulesPath)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log settings = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func resetDistillEnv(t *testing.T) {
	t.Helper()

	original := make(map[string]string)
	existed := make(map[string]bool)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "DISTILL_") {
			continue
		}
		original[key] = value
		existed[key] = true
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}

	t.Cleanup(func() {
		for key := range existed {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("cleanup unset %s: %v", key, err)
			}
		}
		for key, value := range original {
			if err := os.Setenv(key, value); err != nil {
				t.Fatalf("cleanup restore %s: %v", key, err)
			}
		}
	})
}
