package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/otf-learn/otf-learn/learn"
)

// frameRecord is one trajectory frame on disk. Species are element symbols;
// forces and energy are optional (the on-the-fly initial structure carries
// neither).
type frameRecord struct {
	Species   []string        `json:"species"`
	Positions [][3]float64    `json:"positions"`
	Cell      *[3][3]float64  `json:"cell,omitempty"`
	Forces    [][3]float64    `json:"forces,omitempty"`
	Energy    *float64        `json:"energy,omitempty"`
}

func (r *frameRecord) toFrame(index int) (*learn.Frame, error) {
	frame := &learn.Frame{
		Species:   make([]learn.SpeciesCode, len(r.Species)),
		Positions: make([]learn.Vec3, len(r.Positions)),
	}
	for i, label := range r.Species {
		code, err := learn.ParseSpecies(label)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", index, err)
		}
		frame.Species[i] = code
	}
	for i, p := range r.Positions {
		frame.Positions[i] = p
	}
	if r.Cell != nil {
		frame.Cell = *r.Cell
	}
	if r.Forces != nil {
		frame.TrueForces = make([]learn.Vec3, len(r.Forces))
		for i, f := range r.Forces {
			frame.TrueForces[i] = f
		}
	}
	frame.Energy = r.Energy
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("frame %d: %w", index, err)
	}
	return frame, nil
}

// LoadTrajectory reads a JSON array of frames from disk.
func LoadTrajectory(path string) ([]*learn.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trajectory: %w", err)
	}
	var records []frameRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing trajectory: %w", err)
	}
	frames := make([]*learn.Frame, len(records))
	for i := range records {
		frame, err := records[i].toFrame(i)
		if err != nil {
			return nil, err
		}
		frames[i] = frame
	}
	return frames, nil
}

// LoadStructure reads a single frame, used as the on-the-fly initial
// structure.
func LoadStructure(path string) (*learn.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading structure: %w", err)
	}
	var record frameRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parsing structure: %w", err)
	}
	return record.toFrame(0)
}
