// Package dataset generates and loads the three machine-health corpora the
// local search service indexes: time-series sensor readings, operator shift
// reports, and maintenance logs.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"rca-copilot/internal/models"
)

// File names inside a datasets directory.
const (
	SensorFile      = "sensor_data.csv"
	OperatorFile    = "operator_reports.csv"
	MaintenanceFile = "maintenance_logs.json"
)

// LoadCorpora reads all three dataset files under dir and keys them by the
// given index names, ready for search.NewLocal.
func LoadCorpora(dir, sensorIndex, operatorIndex, maintenanceIndex string) (map[string][]models.Document, error) {
	sensor, err := LoadSensorData(filepath.Join(dir, SensorFile))
	if err != nil {
		return nil, err
	}
	operator, err := LoadOperatorReports(filepath.Join(dir, OperatorFile))
	if err != nil {
		return nil, err
	}
	maintenance, err := LoadMaintenanceLogs(filepath.Join(dir, MaintenanceFile))
	if err != nil {
		return nil, err
	}
	return map[string][]models.Document{
		sensorIndex:      sensor,
		operatorIndex:    operator,
		maintenanceIndex: maintenance,
	}, nil
}

// LoadSensorData reads the sensor readings CSV. sensor_value is parsed as a
// number; everything else stays a string.
func LoadSensorData(path string) ([]models.Document, error) {
	return loadCSV(path, map[string]bool{"sensor_value": true})
}

// LoadOperatorReports reads the operator reports CSV.
func LoadOperatorReports(path string) ([]models.Document, error) {
	return loadCSV(path, nil)
}

// LoadMaintenanceLogs reads the maintenance log JSON array.
func LoadMaintenanceLogs(path string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var docs []models.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return docs, nil
}

func loadCSV(path string, numeric map[string]bool) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	var docs []models.Document
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		doc := make(models.Document, len(header))
		for i, col := range header {
			if i >= len(row) {
				break
			}
			if numeric[col] {
				if v, perr := strconv.ParseFloat(row[i], 64); perr == nil {
					doc[col] = v
					continue
				}
			}
			doc[col] = row[i]
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
