package agents

import (
	"fmt"
	"sort"
	"strings"

	"rca-copilot/internal/models"
)

// SensorSpec describes the sensor data domain over the given index.
func SensorSpec(index string) DomainSpec {
	return DomainSpec{
		Key:         models.DomainSensor,
		Name:        "Sensor Data Agent",
		Description: "Analyzes time-series sensor data including temperature, vibration, and pressure readings to identify anomalies and trends.",
		Index:       index,
		EmptyNotice: "No sensor data found matching the query",
		Stats:       sensorStats,
	}
}

// OperatorSpec describes the operator reports domain over the given index.
func OperatorSpec(index string) DomainSpec {
	return DomainSpec{
		Key:         models.DomainOperator,
		Name:        "Operator Agent",
		Description: "Searches operator incident reports to identify patterns, severity levels, and operational issues.",
		Index:       index,
		EmptyNotice: "No operator reports found matching the query",
		Stats:       operatorStats,
	}
}

// MaintenanceSpec describes the maintenance logs domain over the given index.
func MaintenanceSpec(index string) DomainSpec {
	return DomainSpec{
		Key:         models.DomainMaintenance,
		Name:        "Maintenance Agent",
		Description: "Searches maintenance logs to identify repair history, component failures, and preventive maintenance patterns.",
		Index:       index,
		EmptyNotice: "No maintenance logs found matching the query",
		Stats:       maintenanceStats,
	}
}

func sensorStats(docs []models.Document) (string, map[string]any) {
	machines := map[string]struct{}{}
	sensorTypes := map[string]struct{}{}
	statuses := map[string]int{}
	var critical, warning int

	for _, doc := range docs {
		if id := doc.Field("machine_id", "machineId", "MachineID"); id != "" {
			machines[id] = struct{}{}
		}
		if st := doc.Field("sensor_type", "sensorType", "SensorType"); st != "" {
			sensorTypes[st] = struct{}{}
		}
		status := doc.Field("status", "Status")
		if status == "" {
			continue
		}
		statuses[status]++
		switch strings.ToLower(status) {
		case "critical":
			critical++
		case "warning":
			warning++
		}
	}

	summary := fmt.Sprintf("Found %d relevant sensor reading(s)", len(docs))
	if len(machines) > 0 {
		summary += fmt.Sprintf(" across %d machine(s)", len(machines))
	}
	if critical > 0 {
		summary += fmt.Sprintf(" with %d critical alert(s)", critical)
	}

	return summary, map[string]any{
		"total_records":       len(docs),
		"unique_machines":     len(machines),
		"sensor_types":        sortedKeys(sensorTypes),
		"status_distribution": statuses,
		"critical_alerts":     critical,
		"warning_alerts":      warning,
	}
}

func operatorStats(docs []models.Document) (string, map[string]any) {
	machines := map[string]struct{}{}
	severities := map[string]int{}
	var open int

	for _, doc := range docs {
		if id := doc.Field("machine_id", "machineId", "MachineID"); id != "" {
			machines[id] = struct{}{}
		}
		if sev := doc.Field("severity", "Severity"); sev != "" {
			severities[sev]++
		}
		switch strings.ToLower(doc.Field("status", "Status")) {
		case "open", "investigating":
			open++
		}
	}

	summary := fmt.Sprintf("Found %d operator report(s)", len(docs))
	if len(machines) > 0 {
		summary += fmt.Sprintf(" across %d machine(s)", len(machines))
	}
	if open > 0 {
		summary += fmt.Sprintf(" with %d still open", open)
	}

	return summary, map[string]any{
		"total_reports":         len(docs),
		"unique_machines":       len(machines),
		"severity_distribution": severities,
		"open_incidents":        open,
	}
}

func maintenanceStats(docs []models.Document) (string, map[string]any) {
	machines := map[string]struct{}{}
	types := map[string]int{}
	components := map[string]struct{}{}

	for _, doc := range docs {
		if id := doc.Field("machine_id", "machineId", "MachineID"); id != "" {
			machines[id] = struct{}{}
		}
		if mt := doc.Field("maintenance_type", "maintenanceType", "MaintenanceType"); mt != "" {
			types[mt]++
		}
		switch checked := doc["components_checked"].(type) {
		case []any:
			for _, c := range checked {
				if s := fmt.Sprint(c); s != "" {
					components[s] = struct{}{}
				}
			}
		case []string:
			for _, c := range checked {
				components[c] = struct{}{}
			}
		case string:
			if checked != "" {
				components[checked] = struct{}{}
			}
		}
	}

	summary := fmt.Sprintf("Found %d relevant maintenance log(s)", len(docs))
	if len(machines) > 0 {
		summary += fmt.Sprintf(" across %d machine(s)", len(machines))
	}
	if unplanned := types["Emergency"] + types["Corrective"]; unplanned > 0 {
		summary += fmt.Sprintf(" with %d emergency/corrective maintenance(s)", unplanned)
	}

	return summary, map[string]any{
		"total_logs":          len(docs),
		"unique_machines":     len(machines),
		"maintenance_types":   sortedCountKeys(types),
		"type_distribution":   types,
		"components_affected": sortedKeys(components),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCountKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
