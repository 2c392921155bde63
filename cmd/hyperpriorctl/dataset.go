package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// loadDatasets builds one row set per batch from the config's data source.
func loadDatasets(cfg runConfig) ([][][]float64, error) {
	if len(cfg.DataFiles) > 0 {
		datasets := make([][][]float64, 0, len(cfg.DataFiles))
		for _, path := range cfg.DataFiles {
			rows, err := readCSV(path, cfg.Features)
			if err != nil {
				return nil, err
			}
			datasets = append(datasets, rows)
		}
		return datasets, nil
	}

	rows, err := readCSV(cfg.Data, cfg.Features)
	if err != nil {
		return nil, err
	}
	return splitRoundRobin(rows, cfg.Batches), nil
}

func readCSV(path string, features int) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	rows := make([][]float64, 0, len(records))
	for i, record := range records {
		if len(record) != features {
			return nil, fmt.Errorf("%s row %d: %d columns, expected %d", path, i+1, len(record), features)
		}
		row := make([]float64, features)
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %d: %w", path, i+1, j+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}
	return rows, nil
}

func splitRoundRobin(rows [][]float64, batches int) [][][]float64 {
	out := make([][][]float64, batches)
	for i, row := range rows {
		b := i % batches
		out[b] = append(out[b], row)
	}
	return out
}
