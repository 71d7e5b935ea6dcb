package cmd

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/remimazolam/tci-engine/sim"
)

// exportTimePoints writes a SimulationResult's trajectory in the §6 CSV
// boundary format: an optional patient header line, a column header
// line, then one row per TimePoint. When a patient is known, the header's
// "Start Time" and every row's clock column are both offset from
// patient.AnesthesiaAt's time-of-day (00:00 if unset); otherwise rows use
// raw minutes.
func exportTimePoints(path string, patient *sim.Patient, points []sim.TimePoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	startMin := 0.0
	if patient != nil {
		if !patient.AnesthesiaAt.IsZero() {
			startMin = float64(patient.AnesthesiaAt.Hour()*60 + patient.AnesthesiaAt.Minute())
		}
		if err := w.Write([]string{fmt.Sprintf(
			"Patient ID:%s,Age:%g,Weight:%gkg,Height:%gcm,Sex:%s,ASA-PS:%s,Start Time:%s",
			patient.ID, patient.Age, patient.WeightKg, patient.HeightCm, sexLabel(patient.Sex), asaLabel(patient.ASAPS),
			minutesToClock(startMin),
		)}); err != nil {
			return err
		}
	}
	if err := w.Write([]string{"Time", "Predicted Plasma Concentration(ug/mL)", "Predicted Effect-site Concentration(ug/mL)"}); err != nil {
		return err
	}

	for _, p := range points {
		timeCol := fmt.Sprintf("%g", p.T)
		if patient != nil {
			timeCol = minutesToClock(startMin + p.T)
		}
		row := []string{timeCol, fmt.Sprintf("%.3f", p.Cp), fmt.Sprintf("%.3f", p.Ce)}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func sexLabel(s sim.Sex) string {
	if s == sim.Male {
		return "Male"
	}
	return "Female"
}

func asaLabel(a sim.ASAStatus) string {
	if a == sim.ASA_III_IV {
		return "ASA III-IV"
	}
	return "ASA I-II"
}

// minutesToClock renders minutes-since-start as HH:MM, wrapping at 24h.
func minutesToClock(minutes float64) string {
	totalMin := int(minutes+0.5) % (24 * 60)
	if totalMin < 0 {
		totalMin += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", totalMin/60, totalMin%60)
}
