package observe

import (
	"context"
	"strings"
	"testing"
)

// TestConfigValidate exercises the validation rules for telemetry config.
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string // empty means valid
	}{
		{
			name: "fully valid",
			cfg: Config{
				ServiceName: "packops",
				Version:     "1.0.0",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.0},
				Metrics:     MetricsConfig{Enabled: true, Exporter: "stdout"},
				Logging:     LoggingConfig{Enabled: true, Level: "info"},
			},
		},
		{
			name:    "missing service name",
			cfg:     Config{},
			wantErr: "service name",
		},
		{
			name: "unknown tracing exporter",
			cfg: Config{
				ServiceName: "packops",
				Tracing:     TracingConfig{Enabled: true, Exporter: "unknown"},
			},
			wantErr: "unknown tracing exporter",
		},
		{
			name: "unknown metrics exporter",
			cfg: Config{
				ServiceName: "packops",
				Metrics:     MetricsConfig{Enabled: true, Exporter: "badvalue"},
			},
			wantErr: "unknown metrics exporter",
		},
		{
			name: "sample percentage too high",
			cfg: Config{
				ServiceName: "packops",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.5},
			},
			wantErr: "sample percentage",
		},
		{
			name: "sample percentage negative",
			cfg: Config{
				ServiceName: "packops",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: -0.1},
			},
			wantErr: "sample percentage",
		},
		{
			name: "unknown log level",
			cfg: Config{
				ServiceName: "packops",
				Logging:     LoggingConfig{Enabled: true, Level: "badlevel"},
			},
			wantErr: "unknown log level",
		},
		{
			name: "disabled subsystems skip exporter checks",
			cfg: Config{
				ServiceName: "packops",
				Tracing:     TracingConfig{Enabled: false, Exporter: "unknown"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestNewObserver_DisabledNoop verifies that all-disabled config returns no-op observer.
func TestNewObserver_DisabledNoop(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "packops"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	// No-op observer should still be usable
	if obs.Tracer() == nil {
		t.Error("expected non-nil tracer (noop)")
	}
	if obs.Meter() == nil {
		t.Error("expected non-nil meter (noop)")
	}
	if obs.Logger() == nil {
		t.Error("expected non-nil logger (noop)")
	}
}

// TestNewObserver_InvalidConfigReturnsError verifies that invalid config returns error.
func TestNewObserver_InvalidConfigReturnsError(t *testing.T) {
	if _, err := NewObserver(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for invalid config, got nil")
	}
}

// TestObserver_ShutdownGracefully verifies shutdown of enabled providers.
func TestObserver_ShutdownGracefully(t *testing.T) {
	cfg := Config{
		ServiceName: "packops",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.0},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
	}

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no shutdown error, got: %v", err)
	}
}
