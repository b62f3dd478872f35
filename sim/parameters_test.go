package sim

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultParameters(t *testing.T) {
	p := DefaultParameters()
	if p.Re != 1000 || p.Omega != 1.7 || p.Alpha != 0.9 {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if p.DT != 0.2 || p.TEnd != 16.4 || p.Eps != 0.001 || p.Tau != 0.5 {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if p.IterMax != 100 {
		t.Errorf("itermax %d, want 100", p.IterMax)
	}
}

func TestLoadParameters(t *testing.T) {
	content := "re = 100\nomg = 1.5\n\nnot a key line\ntau = 0\niter = 300\nbogus = 1\n"
	path := filepath.Join(t.TempDir(), "params.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadParameters(path)
	if err != nil {
		t.Fatalf("LoadParameters: %v", err)
	}
	if p.Re != 100 {
		t.Errorf("re = %v, want 100", p.Re)
	}
	if p.Omega != 1.5 {
		t.Errorf("omg = %v, want 1.5", p.Omega)
	}
	if p.Tau != 0 {
		t.Errorf("tau = %v, want 0", p.Tau)
	}
	if p.IterMax != 300 {
		t.Errorf("iter = %v, want 300", p.IterMax)
	}
	// Untouched keys keep their defaults.
	if p.Alpha != 0.9 || p.DT != 0.2 {
		t.Errorf("defaults clobbered: %+v", p)
	}
}

func TestLoadParametersBadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.txt")
	if err := os.WriteFile(path, []byte("re = fast\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadParameters(path); err == nil {
		t.Fatal("expected parse error for non-numeric value")
	}
}
