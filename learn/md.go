package learn

import "fmt"

// kBoltzmann in eV/K, matching positions in angstrom, forces in eV/angstrom
// and masses in the internal mass unit used by the original integrator.
const kBoltzmann = 8.617333262e-5

// Integrator advances atomic positions with the position-Verlet scheme:
//
//	x(t+dt) = 2x(t) - x(t-dt) + dt^2 * f(t)/m
//
// Velocities are the central difference (x(t+dt) - x(t-dt)) / 2dt and lag
// the positions by half a step, which is all the temperature report needs.
type Integrator struct {
	dt         float64
	masses     []float64
	prev       []Vec3
	velocities []Vec3
}

// NewIntegrator builds an integrator for the frame's species. Every species
// present must have a mass configured.
func NewIntegrator(md MDConfig, frame *Frame) (*Integrator, error) {
	if md.Timestep <= 0 {
		return nil, fmt.Errorf("md timestep must be positive, got %v", md.Timestep)
	}
	masses := make([]float64, frame.NumAtoms())
	for i, species := range frame.Species {
		m, ok := md.Masses[species]
		if !ok {
			return nil, fmt.Errorf("no mass configured for species %s", SpeciesLabel(species))
		}
		masses[i] = m
	}
	in := &Integrator{
		dt:         md.Timestep,
		masses:     masses,
		prev:       append([]Vec3(nil), frame.Positions...),
		velocities: make([]Vec3, frame.NumAtoms()),
	}
	return in, nil
}

// SetState restores previous positions and velocities from a checkpoint.
func (in *Integrator) SetState(prev, velocities []Vec3) error {
	if len(prev) != len(in.masses) || len(velocities) != len(in.masses) {
		return fmt.Errorf("integrator state has %d/%d entries for %d atoms", len(prev), len(velocities), len(in.masses))
	}
	in.prev = append([]Vec3(nil), prev...)
	in.velocities = append([]Vec3(nil), velocities...)
	return nil
}

// PrevPositions returns the integrator's previous-position state.
func (in *Integrator) PrevPositions() []Vec3 { return in.prev }

// Velocities returns the last computed velocities.
func (in *Integrator) Velocities() []Vec3 { return in.velocities }

// Step updates the frame's positions in place from the given forces.
func (in *Integrator) Step(frame *Frame, forces []Vec3) {
	dt2 := in.dt * in.dt
	for i := range frame.Positions {
		cur := frame.Positions[i]
		var next Vec3
		for c := 0; c < 3; c++ {
			next[c] = 2*cur[c] - in.prev[i][c] + dt2*forces[i][c]/in.masses[i]
			in.velocities[i][c] = (next[c] - in.prev[i][c]) / (2 * in.dt)
		}
		in.prev[i] = cur
		frame.Positions[i] = next
	}
}

// Temperature returns the kinetic energy and instantaneous temperature of
// the current velocities.
func (in *Integrator) Temperature() (ke, temp float64) {
	for i, v := range in.velocities {
		ke += 0.5 * in.masses[i] * (v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	}
	dof := 3 * len(in.masses)
	if dof == 0 {
		return 0, 0
	}
	temp = 2 * ke / (float64(dof) * kBoltzmann)
	return ke, temp
}
