package ml

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/stat"

	domsvc "FinRank/internal/domain/service"
)

// StandardScaler centers columns to zero mean and unit population variance.
// Zero-variance columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler learns per-column mean and standard deviation.
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("fit scaler: empty matrix")
	}
	cols := len(X[0])
	s := &StandardScaler{Mean: make([]float64, cols), Scale: make([]float64, cols)}
	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			if len(row) != cols {
				return nil, fmt.Errorf("fit scaler: row %d has %d columns, want %d", i, len(row), cols)
			}
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s, nil
}

func (s *StandardScaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

func (s *StandardScaler) TransformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.Transform(row)
	}
	return out
}

// DecodeScaler restores a scaler saved with json.Marshal.
func DecodeScaler(b []byte) (*StandardScaler, error) {
	var s StandardScaler
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("decode scaler: inconsistent dimensions %d/%d", len(s.Mean), len(s.Scale))
	}
	return &s, nil
}

var _ domsvc.Scaler = (*StandardScaler)(nil)
