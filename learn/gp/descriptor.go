package gp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/otf-learn/otf-learn/learn"
)

// descriptors turns a frame into fixed-length local-environment
// fingerprints: for each atom, the sorted distances to its k nearest
// neighbors under the minimum-image convention, zero-padded when the frame
// has fewer neighbors than k. Distances are a crude but rotation- and
// permutation-invariant summary, which is all the reference kernel needs.
type frameGeometry struct {
	frame *learn.Frame
	cell  *mat.Dense
	inv   *mat.Dense // nil for a non-periodic (zero) cell
}

func newFrameGeometry(frame *learn.Frame) *frameGeometry {
	g := &frameGeometry{frame: frame}
	zero := true
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if frame.Cell[i][j] != 0 {
				zero = false
			}
		}
	}
	if zero {
		return g
	}
	cell := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cell.Set(i, j, frame.Cell[i][j])
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(cell); err != nil {
		// Singular cell: treat as non-periodic.
		return g
	}
	g.cell = cell
	g.inv = &inv
	return g
}

// distance returns the minimum-image distance between atoms i and j.
func (g *frameGeometry) distance(i, j int) float64 {
	var d [3]float64
	for c := 0; c < 3; c++ {
		d[c] = g.frame.Positions[j][c] - g.frame.Positions[i][c]
	}
	if g.inv != nil {
		// Wrap the fractional separation into [-0.5, 0.5).
		var frac [3]float64
		for c := 0; c < 3; c++ {
			for k := 0; k < 3; k++ {
				frac[c] += g.inv.At(k, c) * d[k]
			}
			frac[c] -= math.Round(frac[c])
		}
		for c := 0; c < 3; c++ {
			d[c] = 0
			for k := 0; k < 3; k++ {
				d[c] += g.cell.At(k, c) * frac[k]
			}
		}
	}
	return math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
}

// descriptor computes atom i's fingerprint of length k.
func (g *frameGeometry) descriptor(i, k int) []float64 {
	dists := make([]float64, 0, g.frame.NumAtoms()-1)
	for j := 0; j < g.frame.NumAtoms(); j++ {
		if j == i {
			continue
		}
		dists = append(dists, g.distance(i, j))
	}
	sort.Float64s(dists)
	desc := make([]float64, k)
	copy(desc, dists)
	return desc
}
