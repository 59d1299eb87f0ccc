package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseMachine_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []Phase
		wantErr bool
	}{
		{name: "setup to indexing to ready", path: []Phase{PhaseIndexing, PhaseReady}},
		{name: "indexing failure back to setup", path: []Phase{PhaseIndexing, PhaseSetup, PhaseIndexing}},
		{name: "setup straight to ready", path: []Phase{PhaseReady}, wantErr: true},
		{name: "ready never goes back to indexing", path: []Phase{PhaseIndexing, PhaseReady, PhaseIndexing}, wantErr: true},
		{name: "ready never goes back to setup", path: []Phase{PhaseIndexing, PhaseReady, PhaseSetup}, wantErr: true},
		{name: "self transition", path: []Phase{PhaseSetup}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewPhaseMachine()
			var err error
			for _, next := range tt.path {
				if err = machine.Transition(next); err != nil {
					break
				}
			}
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.path[len(tt.path)-1], machine.Current())
		})
	}
}

func TestPhaseMachine_NotifiesListeners(t *testing.T) {
	machine := NewPhaseMachine()
	var seen [][2]Phase
	machine.Subscribe(func(from, to Phase) {
		assert.Equal(t, to, machine.Current())
		seen = append(seen, [2]Phase{from, to})
	})

	require.NoError(t, machine.Transition(PhaseIndexing))
	require.NoError(t, machine.Transition(PhaseReady))
	require.Error(t, machine.Transition(PhaseSetup))

	assert.Equal(t, [][2]Phase{{PhaseSetup, PhaseIndexing}, {PhaseIndexing, PhaseReady}}, seen)
	assert.Equal(t, "READY", machine.Current().String())
}
