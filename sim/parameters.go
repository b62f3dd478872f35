package sim

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Parameters are the process-wide solver parameters. Loaded once at
// startup, read-only during the simulation.
type Parameters struct {
	Re      float32 // Reynolds number
	Omega   float32 // SOR relaxation factor
	Alpha   float32 // donor-cell blending factor [0,1]
	DT      float32 // maximum/target time step
	TEnd    float32 // simulation end time
	Eps     float32 // SOR convergence threshold
	Tau     float32 // time-step safety factor; <= 0 disables adaptation
	IterMax int     // SOR iteration cap per substep
}

// DefaultParameters returns the standard lid-driven-cavity parameter set.
func DefaultParameters() Parameters {
	return Parameters{
		Re:      1000.0,
		Omega:   1.7,
		Alpha:   0.9,
		DT:      0.2,
		TEnd:    16.4,
		Eps:     0.001,
		Tau:     0.5,
		IterMax: 100,
	}
}

// LoadParameters reads a `key = value` parameter file on top of the
// defaults. Unknown keys are logged and ignored.
func LoadParameters(path string) (Parameters, error) {
	p := DefaultParameters()

	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("opening parameter file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, rest, found := strings.Cut(scanner.Text(), "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value := strings.TrimSpace(rest)

		switch key {
		case "re":
			err = parseFloat(value, &p.Re)
		case "omg":
			err = parseFloat(value, &p.Omega)
		case "alpha":
			err = parseFloat(value, &p.Alpha)
		case "dt":
			err = parseFloat(value, &p.DT)
		case "tend":
			err = parseFloat(value, &p.TEnd)
		case "eps":
			err = parseFloat(value, &p.Eps)
		case "tau":
			err = parseFloat(value, &p.Tau)
		case "iter":
			p.IterMax, err = strconv.Atoi(value)
		default:
			slog.Warn("unknown parameter key", "key", key, "file", path)
			continue
		}
		if err != nil {
			return p, fmt.Errorf("parameter %q: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return p, fmt.Errorf("reading parameter file: %w", err)
	}
	return p, nil
}

func parseFloat(s string, dst *float32) error {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return err
	}
	*dst = float32(v)
	return nil
}
