package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/remimazolam/tci-engine/sim"
)

func TestExportTimePoints_WithPatientIncludesHeaderAndClock(t *testing.T) {
	patient, err := sim.NewPatient("p1", 45, 70, 170, sim.Male, sim.ASA_I_II, time.Time{})
	if err != nil {
		t.Fatalf("NewPatient: %v", err)
	}
	points := []sim.TimePoint{{T: 0, Cp: 0, Ce: 0}, {T: 1.5, Cp: 0.123, Ce: 0.0456}}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := exportTimePoints(path, patient, points); err != nil {
		t.Fatalf("exportTimePoints: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (patient header, column header, 2 rows), got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "Patient ID:p1") {
		t.Errorf("patient header missing patient ID: %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "00:00,") {
		t.Errorf("first row should use HH:MM clock format, got %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "00:02,") && !strings.HasPrefix(lines[3], "00:01,") {
		t.Errorf("second row clock column unexpected: %q", lines[3])
	}
}

func TestExportTimePoints_NonZeroAnesthesiaAtOffsetsHeaderAndRows(t *testing.T) {
	anesthesiaAt := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	patient, err := sim.NewPatient("p2", 45, 70, 170, sim.Male, sim.ASA_I_II, anesthesiaAt)
	if err != nil {
		t.Fatalf("NewPatient: %v", err)
	}
	points := []sim.TimePoint{{T: 0, Cp: 0, Ce: 0}, {T: 90, Cp: 0.1, Ce: 0.2}}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := exportTimePoints(path, patient, points); err != nil {
		t.Fatalf("exportTimePoints: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (patient header, column header, 2 rows), got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "Start Time:08:00") {
		t.Errorf("header should reflect AnesthesiaAt's time-of-day, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "08:00,") {
		t.Errorf("first row should start at the anesthesia start clock, got %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "09:30,") {
		t.Errorf("second row (t=90min) should be 09:30, got %q", lines[3])
	}
}

func TestExportTimePoints_WithoutPatientUsesRawMinutes(t *testing.T) {
	points := []sim.TimePoint{{T: 0, Cp: 0, Ce: 0}, {T: 12.5, Cp: 1, Ce: 1}}
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := exportTimePoints(path, nil, points); err != nil {
		t.Fatalf("exportTimePoints: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (no patient header), got %d: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[2], "12.5,") {
		t.Errorf("second row should use raw minutes, got %q", lines[2])
	}
}

func TestMinutesToClock_WrapsAt24Hours(t *testing.T) {
	if got := minutesToClock(0); got != "00:00" {
		t.Errorf("minutesToClock(0) = %q, want 00:00", got)
	}
	if got := minutesToClock(90); got != "01:30" {
		t.Errorf("minutesToClock(90) = %q, want 01:30", got)
	}
	if got := minutesToClock(24*60 + 15); got != "00:15" {
		t.Errorf("minutesToClock(24h+15min) = %q, want 00:15", got)
	}
}

func TestSexLabelAndASALabel(t *testing.T) {
	if sexLabel(sim.Male) != "Male" {
		t.Errorf("sexLabel(Male) wrong")
	}
	if sexLabel(sim.Female) != "Female" {
		t.Errorf("sexLabel(Female) wrong")
	}
	if asaLabel(sim.ASA_I_II) != "ASA I-II" {
		t.Errorf("asaLabel(ASA_I_II) wrong")
	}
	if asaLabel(sim.ASA_III_IV) != "ASA III-IV" {
		t.Errorf("asaLabel(ASA_III_IV) wrong")
	}
}
