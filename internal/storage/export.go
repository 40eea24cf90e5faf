package storage

import (
	"encoding/json"
	"io"
	"math"
)

// jsonFloat encodes NaN and infinities as null.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

type ExportData struct {
	Meta      RunMetadata `json:"meta"`
	Steps     int         `json:"steps"`
	Times     []float64   `json:"times"`
	States    [][]float64 `json:"states"`
	Controls  [][]float64 `json:"controls"`
	PlanCosts []jsonFloat `json:"plan_costs"`
}

// ExportJSON writes a stored run as one JSON document.
func ExportJSON(w io.Writer, meta *RunMetadata, run *Run) error {
	data := ExportData{
		Meta:      *meta,
		Steps:     len(run.Times),
		Times:     run.Times,
		States:    run.States,
		Controls:  run.Controls,
		PlanCosts: make([]jsonFloat, len(run.PlanCosts)),
	}
	for i, c := range run.PlanCosts {
		data.PlanCosts[i] = jsonFloat(c)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
