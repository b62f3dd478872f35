package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}
	if cfg.Screen.Width <= 0 || cfg.Screen.Height <= 0 {
		t.Errorf("invalid default screen size %dx%d", cfg.Screen.Width, cfg.Screen.Height)
	}
	if cfg.Compute.Backend != "opencl" {
		t.Errorf("default backend %q, want opencl", cfg.Compute.Backend)
	}
	if cfg.Compute.StepsPerFrame < 1 {
		t.Errorf("steps_per_frame %d, want >= 1", cfg.Compute.StepsPerFrame)
	}
	if cfg.Display.ZoomMax < cfg.Display.ZoomMin {
		t.Errorf("zoom range inverted: [%v, %v]", cfg.Display.ZoomMin, cfg.Display.ZoomMax)
	}
	if cfg.Derived.ScreenW32 != float32(cfg.Screen.Width) {
		t.Errorf("derived width %v, want %v", cfg.Derived.ScreenW32, cfg.Screen.Width)
	}
}

func TestLoadOverridesMergeWithDefaults(t *testing.T) {
	content := "compute:\n  backend: cpu\nscreen:\n  width: 640\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compute.Backend != "cpu" {
		t.Errorf("backend %q, want override cpu", cfg.Compute.Backend)
	}
	if cfg.Screen.Width != 640 {
		t.Errorf("width %d, want override 640", cfg.Screen.Width)
	}
	// Values absent from the file keep their defaults.
	if cfg.Screen.TargetFPS <= 0 {
		t.Errorf("target_fps %d lost its default", cfg.Screen.TargetFPS)
	}
	if cfg.Display.Field == "" {
		t.Error("display field lost its default")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Compute.Backend = "cpu"

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	back, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.Compute.Backend != "cpu" {
		t.Errorf("backend %q after round trip, want cpu", back.Compute.Backend)
	}
}
