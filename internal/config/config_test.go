package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"100ms", 100 * time.Millisecond, false},
		{"2s", 2 * time.Second, false},
		{"0.1", 100 * time.Millisecond, false},
		{"1", time.Second, false},
		{" 0.25 ", 250 * time.Millisecond, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_LightsForms(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{"sequence", "lights:\n  - desk\n  - shelf\n", []string{"desk", "shelf"}},
		{"comma separated", "lights: \"desk, shelf,,tv\"\n", []string{"desk", "shelf", "tv"}},
		{"single", "lights: desk\n", []string{"desk"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if strings.Join(cfg.Lights, "|") != strings.Join(tt.want, "|") {
				t.Errorf("lights = %q, want %q", cfg.Lights, tt.want)
			}
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("hub:\n  address: hass.local\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.GetThrottle() != 100*time.Millisecond {
		t.Errorf("throttle = %v", cfg.GetThrottle())
	}
	if cfg.Hub.Timeout.Duration() != 10*time.Second {
		t.Errorf("hub.timeout = %v", cfg.Hub.Timeout.Duration())
	}
	if cfg.HTTP.Port != 80 || cfg.Realtime.Port != 21324 {
		t.Errorf("ports = %d/%d", cfg.HTTP.Port, cfg.Realtime.Port)
	}
	if cfg.Device.MAC != "44:1d:64:f4:00:00" || cfg.Device.LEDCount != 1 {
		t.Errorf("device = %+v", cfg.Device)
	}
	if cfg.Device.LiveTimeout.Duration() != 2500*time.Millisecond {
		t.Errorf("live_timeout = %v", cfg.Device.LiveTimeout.Duration())
	}
	if !cfg.Discovery.MDNSEnabled() || !cfg.Discovery.SSDPEnabled() {
		t.Error("discovery should be enabled by default")
	}
	if cfg.EventBus.GetQueueSize() != 16 {
		t.Errorf("queue size = %d", cfg.EventBus.GetQueueSize())
	}
	if cfg.GetLedgerRetention() != 7*24*time.Hour {
		t.Errorf("retention = %v", cfg.GetLedgerRetention())
	}
	if cfg.Database.Path != "" {
		t.Errorf("database.path = %q, want empty", cfg.Database.Path)
	}
}

func TestParse_Throttle(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{"unset", "lights: [a]\n", DefaultThrottle},
		{"explicit zero", "throttle: 0\n", 0},
		{"zero duration", "throttle: 0s\n", 0},
		{"seconds", "throttle: 0.2\n", 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := cfg.GetThrottle(); got != tt.want {
				t.Errorf("GetThrottle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultTemplate_ZeroThrottle(t *testing.T) {
	t.Setenv("THROTTLE", "0")

	cfg, err := Parse([]byte(DefaultTemplate))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.GetThrottle(); got != 0 {
		t.Errorf("GetThrottle() = %v, want 0", got)
	}
}

func TestParse_DiscoveryDisabled(t *testing.T) {
	cfg, err := Parse([]byte("discovery:\n  mdns: false\n  ssdp: true\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Discovery.MDNSEnabled() {
		t.Error("mdns should be disabled")
	}
	if !cfg.Discovery.SSDPEnabled() {
		t.Error("ssdp should be enabled")
	}
}

func TestDefaultTemplate_FromEnvironment(t *testing.T) {
	t.Setenv("HA_IP", "192.168.1.10")
	t.Setenv("HA_TOKEN", "secret")
	t.Setenv("ENTITY_NAMES", "desk,shelf")
	t.Setenv("ENTITY_COUNT", "2")
	t.Setenv("THROTTLE", "0.5")
	t.Setenv("WLED_NAME", "")

	cfg, err := Parse([]byte(DefaultTemplate))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Hub.Address != "192.168.1.10" || cfg.Hub.Token != "secret" {
		t.Errorf("hub = %+v", cfg.Hub)
	}
	if cfg.Device.Name != "HomeAssistantBridge" {
		t.Errorf("device.name = %q", cfg.Device.Name)
	}
	if cfg.Device.LEDCount != 2 {
		t.Errorf("led_count = %d", cfg.Device.LEDCount)
	}
	if len(cfg.Lights) != 2 || cfg.Lights[1] != "shelf" {
		t.Errorf("lights = %q", cfg.Lights)
	}
	if cfg.GetThrottle() != 500*time.Millisecond {
		t.Errorf("throttle = %v", cfg.GetThrottle())
	}
	if cfg.Database.Path != "./wledbridge.sqlite" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg, err := Parse([]byte("device:\n  ip: not-an-ip\nlights: []\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Fatalf("expected joined error, got %T", err)
	}
	if n := len(joined.Unwrap()); n != 5 {
		t.Errorf("got %d errors, want 5: %v", n, err)
	}
	for _, key := range []string{"hub.address", "hub.token", "device.name", "lights", "device.ip"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}

func TestLoad_FallsBackToTemplate(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HA_IP", "hass.local")
	t.Setenv("HA_TOKEN", "tok")

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hub.Address != "hass.local" {
		t.Errorf("hub.address = %q", cfg.Hub.Address)
	}
	if len(cfg.Lights) != 1 || cfg.Lights[0] != "wled" {
		t.Errorf("lights = %q", cfg.Lights)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.yaml")
	data := "hub:\n  address: ${TEST_HUB:hub.lan}\n  token: t\ndevice:\n  name: Strip\nlights: [a]\nthrottle: 250ms\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hub.Address != "hub.lan" {
		t.Errorf("hub.address = %q, want default from expansion", cfg.Hub.Address)
	}
	if cfg.GetThrottle() != 250*time.Millisecond {
		t.Errorf("throttle = %v", cfg.GetThrottle())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
