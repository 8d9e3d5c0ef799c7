package learn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldWrite(t *testing.T) {
	tests := []struct {
		name                         string
		trains, trainIvl             int
		atoms, atomIvl               int
		step, stepIvl                int
		want                         WriteDecision
	}{
		{
			name: "nothing accumulated never fires",
			trainIvl: 1, atomIvl: 1, stepIvl: 0,
			want: WriteDecision{},
		},
		{
			name:   "train interval fires and resets only trains",
			trains: 2, trainIvl: 2, atoms: 1, atomIvl: 100,
			want: WriteDecision{Write: true, ResetTrains: true},
		},
		{
			name:  "atom interval fires and resets only atoms",
			atoms: 100, atomIvl: 100, trains: 1, trainIvl: 5,
			want: WriteDecision{Write: true, ResetAtoms: true},
		},
		{
			name:   "both fire together",
			trains: 1, trainIvl: 1, atoms: 10, atomIvl: 10,
			want: WriteDecision{Write: true, ResetTrains: true, ResetAtoms: true},
		},
		{
			name: "step interval fires on positive multiples",
			step: 6, stepIvl: 3,
			want: WriteDecision{Write: true},
		},
		{
			name: "step zero does not fire",
			step: 0, stepIvl: 3,
			want: WriteDecision{},
		},
		{
			name: "zero intervals disable conditions",
			trains: 50, atoms: 50, step: 50,
			want: WriteDecision{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldWrite(tt.trains, tt.trainIvl, tt.atoms, tt.atomIvl, tt.step, tt.stepIvl)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldWrite_IdempotentAfterReset(t *testing.T) {
	// A fired condition resets its counter; with no new accumulation the
	// same condition cannot fire again.
	d := ShouldWrite(2, 2, 0, 0, 0, 0)
	assert.True(t, d.Write)
	assert.True(t, d.ResetTrains)

	d = ShouldWrite(0, 2, 0, 0, 0, 0)
	assert.False(t, d.Write)
}
