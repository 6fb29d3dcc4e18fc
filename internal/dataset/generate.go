package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var (
	machineIDs = func() []string {
		ids := make([]string, 0, 50)
		for i := 1; i <= 50; i++ {
			ids = append(ids, fmt.Sprintf("MCH_%03d", i))
		}
		return ids
	}()

	technicians = []string{"A. Sharma", "R. Patel", "N. Rao", "V. Singh", "K. Iyer", "L. Mehta"}
	operators   = []string{"S. Kumar", "A. Khan", "R. Verma", "T. Singh", "N. Iyer", "J. Das"}

	sensorTypes      = []string{"Temperature", "Vibration", "Pressure"}
	maintenanceTypes = []string{"Preventive", "Corrective", "Emergency"}
	severityLevels   = []string{"Low", "Medium", "High", "Critical"}
	shifts           = []string{"Day", "Evening", "Night"}
	reportStatuses   = []string{"Open", "Investigating", "Closed"}

	components = []string{
		"Bearing Assembly", "Cooling Fan", "Oil Pump", "Compressor Valve",
		"Heat Exchanger", "Gearbox", "Motor Shaft", "Hydraulic Pump",
	}
	maintenanceActions = []string{
		"Replaced damaged bearing",
		"Lubricated moving parts",
		"Cleaned filters and inspected seals",
		"Calibrated pressure sensor",
		"Replaced cooling fan belt",
		"Repaired valve leakage",
		"Adjusted motor alignment",
		"Performed complete system diagnostics",
	}
	maintenanceRemarks = []string{
		"System performance restored.",
		"Vibration levels normalized.",
		"Temperature stability improved.",
		"Minor wear detected; monitor closely.",
		"Pressure fluctuation resolved.",
		"Awaiting parts for full replacement.",
	}

	incidentTemplates = []string{
		"Unusual vibration noise observed near bearing housing.",
		"Temperature rising faster than normal during startup.",
		"Pressure fluctuations noted under steady load.",
		"Oil leakage detected near coupling joint.",
		"System auto-shutdown triggered by overheat sensor.",
		"Minor smoke detected from motor casing.",
		"Slight delay in start-up sequence observed.",
	}
	actionTemplates = []string{
		"Reduced load and notified maintenance team.",
		"Monitored parameters for 15 minutes.",
		"Reset system and escalated to engineering.",
		"Checked coolant levels and filters.",
		"Temporarily halted machine for inspection.",
		"Adjusted valve and resumed normal operation.",
	}
)

// GenerateOptions control corpus generation.
type GenerateOptions struct {
	Dir  string
	Rows int
	Seed int64
}

// Generate writes the three dataset files under opts.Dir. The same seed
// reproduces the same corpora.
func Generate(opts GenerateOptions) error {
	if opts.Rows <= 0 {
		opts.Rows = 10000
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create datasets dir: %w", err)
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	if err := generateSensorData(opts.Dir, opts.Rows, rng); err != nil {
		return err
	}
	if err := generateMaintenanceLogs(opts.Dir, opts.Rows, rng); err != nil {
		return err
	}
	return generateOperatorReports(opts.Dir, opts.Rows, rng)
}

func generateSensorData(dir string, rows int, rng *rand.Rand) error {
	f, err := os.Create(filepath.Join(dir, SensorFile))
	if err != nil {
		return fmt.Errorf("create %s: %w", SensorFile, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "machine_id", "sensor_type", "sensor_value", "unit", "status"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	start := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		ts := start.Add(time.Duration(i) * 5 * time.Minute)
		sensorType := pick(rng, sensorTypes)

		var value float64
		var unit string
		switch sensorType {
		case "Temperature":
			value = round2(uniform(rng, 55, 90))
			unit = "°C"
		case "Vibration":
			value = round2(uniform(rng, 2.0, 12.0))
			unit = "mm/s"
		default:
			value = round2(uniform(rng, 1.5, 6.0))
			unit = "bar"
		}

		status := sensorStatus(sensorType, value)
		record := []string{
			ts.Format("2006-01-02T15:04:05") + "Z",
			pick(rng, machineIDs),
			sensorType,
			strconv.FormatFloat(value, 'f', 2, 64),
			unit,
			status,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// sensorStatus applies the alerting thresholds per sensor type.
func sensorStatus(sensorType string, value float64) string {
	switch sensorType {
	case "Temperature":
		if value > 80 {
			return "Critical"
		}
		if value > 70 {
			return "Warning"
		}
	case "Vibration":
		if value > 9 {
			return "Critical"
		}
		if value > 7 {
			return "Warning"
		}
	default: // Pressure
		if value > 5 {
			return "Critical"
		}
		if value > 4 {
			return "Warning"
		}
	}
	return "Normal"
}

func generateMaintenanceLogs(dir string, rows int, rng *rand.Rand) error {
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	logs := make([]map[string]any, 0, rows)
	for i := 0; i < rows; i++ {
		logs = append(logs, map[string]any{
			"log_id":             fmt.Sprintf("LOG_%d", 1000+i),
			"machine_id":         pick(rng, machineIDs),
			"date":               base.AddDate(0, 0, rng.Intn(46)).Format("2006-01-02"),
			"maintenance_type":   pick(rng, maintenanceTypes),
			"components_checked": sample(rng, components, 1+rng.Intn(3)),
			"actions_taken":      pick(rng, maintenanceActions),
			"technician":         pick(rng, technicians),
			"downtime_hours":     round1(uniform(rng, 1.0, 8.0)),
			"remarks":            pick(rng, maintenanceRemarks),
		})
	}

	data, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MaintenanceFile), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", MaintenanceFile, err)
	}
	return nil
}

func generateOperatorReports(dir string, rows int, rng *rand.Rand) error {
	f, err := os.Create(filepath.Join(dir, OperatorFile))
	if err != nil {
		return fmt.Errorf("create %s: %w", OperatorFile, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"report_id", "machine_id", "operator_name", "shift",
		"date", "incident_description", "initial_action", "severity", "status",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		record := []string{
			fmt.Sprintf("REP_%d", 1000+i),
			pick(rng, machineIDs),
			pick(rng, operators),
			pick(rng, shifts),
			base.AddDate(0, 0, rng.Intn(61)).Format("2006-01-02"),
			pick(rng, incidentTemplates),
			pick(rng, actionTemplates),
			pick(rng, severityLevels),
			pick(rng, reportStatuses),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func pick(rng *rand.Rand, options []string) string {
	return options[rng.Intn(len(options))]
}

func sample(rng *rand.Rand, options []string, n int) []string {
	shuffled := append([]string(nil), options...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
