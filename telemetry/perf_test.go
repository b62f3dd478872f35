package telemetry

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPerfCollectorPhases(t *testing.T) {
	p := NewPerfCollector(10)

	for i := 0; i < 3; i++ {
		p.StartTick()
		p.StartPhase(PhaseStep)
		time.Sleep(time.Millisecond)
		p.StartPhase(PhaseHUD)
		p.EndTick()
	}

	stats := p.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Errorf("avg tick %v, want > 0", stats.AvgTickDuration)
	}
	if stats.PhaseAvg[PhaseStep] <= 0 {
		t.Errorf("step phase has no recorded time")
	}
	if _, ok := stats.PhasePct[PhaseStep]; !ok {
		t.Error("step phase missing from percentages")
	}
}

func TestPerfCollectorWindowWraps(t *testing.T) {
	p := NewPerfCollector(4)
	for i := 0; i < 10; i++ {
		p.StartTick()
		p.StartPhase(PhaseStep)
		p.EndTick()
	}
	if p.sampleCount != 4 {
		t.Errorf("sample count %d, want window size 4", p.sampleCount)
	}
}

func TestPerfReportTotals(t *testing.T) {
	p := NewPerfCollector(10)
	for i := 0; i < 5; i++ {
		p.StartTick()
		p.StartPhase(PhaseStep)
		p.EndTick()
	}

	report := p.Report()
	if len(report) != 1 {
		t.Fatalf("report has %d phases, want 1", len(report))
	}
	if report[0].Phase != PhaseStep {
		t.Errorf("phase %q, want %q", report[0].Phase, PhaseStep)
	}
	if report[0].Executions != 5 {
		t.Errorf("executions %d, want 5", report[0].Executions)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	for i := int64(1); i <= 3; i++ {
		err := om.WriteStep(StepRecord{
			Step: i, T: float32(i) * 0.01, DT: 0.01,
			SORIters: 12, Residual: 0.0005, State: "converged",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "steps.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// Header plus three records, written with a single header line.
	if len(rows) != 4 {
		t.Fatalf("steps.csv has %d rows, want 4", len(rows))
	}
	if rows[0][0] != "step" {
		t.Errorf("header %v, want leading step column", rows[0])
	}
	if rows[1][5] != "converged" {
		t.Errorf("state column %q, want converged", rows[1][5])
	}
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatal(err)
	}
	if om != nil {
		t.Fatal("empty dir should disable output")
	}
	// Nil receivers are no-ops, not panics.
	if err := om.WriteStep(StepRecord{}); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf.json")
	report := []PhaseTotal{{Phase: PhaseStep, Executions: 10, TotalMS: 4.2, AvgUS: 420}}
	if err := WriteReport(path, report); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("empty report file")
	}
}
