package learn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldTrain(t *testing.T) {
	tests := []struct {
		name         string
		atoms        int
		minAtoms     int
		lastEligible bool
		done         int
		max          int
		want         TrainDecision
	}{
		{
			name: "no atoms skips", atoms: 0, minAtoms: 3,
			want: TrainDecision{Action: TrainSkip},
		},
		{
			name: "no atoms skips even on flush", atoms: 0, minAtoms: 3, lastEligible: true,
			want: TrainDecision{Action: TrainSkip},
		},
		{
			name: "threshold met trains and resets", atoms: 3, minAtoms: 3,
			want: TrainDecision{Action: TrainFull, ResetAtoms: true},
		},
		{
			name: "below threshold refreshes without reset", atoms: 2, minAtoms: 3,
			want: TrainDecision{Action: TrainRefresh},
		},
		{
			name: "end-of-run flush trains below threshold", atoms: 1, minAtoms: 3, lastEligible: true,
			want: TrainDecision{Action: TrainFull, ResetAtoms: true},
		},
		{
			name: "budget exhausted degrades to refresh with reset", atoms: 5, minAtoms: 3, done: 2, max: 2,
			want: TrainDecision{Action: TrainRefresh, ResetAtoms: true},
		},
		{
			name: "budget remaining trains", atoms: 5, minAtoms: 3, done: 1, max: 2,
			want: TrainDecision{Action: TrainFull, ResetAtoms: true},
		},
		{
			name: "zero max is unlimited", atoms: 5, minAtoms: 3, done: 100, max: 0,
			want: TrainDecision{Action: TrainFull, ResetAtoms: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldTrain(tt.atoms, tt.minAtoms, tt.lastEligible, tt.done, tt.max)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrainActionString(t *testing.T) {
	assert.Equal(t, "skip", TrainSkip.String())
	assert.Equal(t, "refresh", TrainRefresh.String())
	assert.Equal(t, "full-retrain", TrainFull.String())
}
