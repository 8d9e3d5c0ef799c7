// Package trace provides decision-record types for post-hoc audit of a
// learning run. This package has no dependencies on learn/; it stores pure
// data types plus their durable JSON form.
package trace

// PlanEntry captures one flagged atom in a training-plan record.
type PlanEntry struct {
	Atom        int     `json:"atom"`
	Uncertainty float64 `json:"uncertainty"`
	Error       float64 `json:"error"`
}

// StepRecord captures the per-step comparison between surrogate predictions
// and ground truth. Appended every step regardless of whether training
// occurred.
type StepRecord struct {
	Step         int                `json:"step"`
	OracleCalled bool               `json:"oracle_called"`
	AtomsAdded   int                `json:"atoms_added"`
	MAE          float64            `json:"mae,omitempty"`
	MAEBySpecies map[string]float64 `json:"mae_by_species,omitempty"`
	WallTimeMS   float64            `json:"wall_time_ms"`
}
