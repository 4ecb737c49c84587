// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package regression

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/covidmobility/internal/models"
)

// Dataset is the design matrix of one model over a set of ML rows.
type Dataset struct {
	Features []string
	Label    string

	// X is nil when no row is complete.
	X *mat.Dense
	Y []float64

	// Rows are the source rows of X, in order.
	Rows []models.MLRow

	// Skipped counts rows dropped for a NULL feature or label.
	Skipped int
}

// NewDataset selects features and label from rows, skipping incomplete rows.
func NewDataset(rows []models.MLRow, features []string, label string) *Dataset {
	ds := &Dataset{Features: features, Label: label}
	data := make([]float64, 0, len(rows)*len(features))

	for i := range rows {
		y, ok := rows[i].Value(label)
		if !ok {
			ds.Skipped++
			continue
		}
		values := make([]float64, len(features))
		complete := true
		for j, f := range features {
			v, ok := rows[i].Value(f)
			if !ok {
				complete = false
				break
			}
			values[j] = v
		}
		if !complete {
			ds.Skipped++
			continue
		}
		data = append(data, values...)
		ds.Y = append(ds.Y, y)
		ds.Rows = append(ds.Rows, rows[i])
	}

	if len(ds.Y) > 0 {
		ds.X = mat.NewDense(len(ds.Y), len(features), data)
	}
	return ds
}

// Len returns the number of complete rows.
func (d *Dataset) Len() int {
	return len(d.Y)
}
