package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RuntimeError
		want string
	}{
		{
			name: "plain",
			err:  ErrTurnInProgress,
			want: "TURN_IN_PROGRESS: another turn is executing on this engine",
		},
		{
			name: "with turn",
			err:  newSetupError("s", 3, "resolve sources", errors.New("db closed")),
			want: "SETUP_FAILED: resolve sources (turn=3): db closed",
		},
		{
			name: "with unit",
			err:  newUnitError("s", 2, "chain:c1", errors.New("boom")),
			want: "UNIT_FAILED: unit failed (turn=2, unit=chain:c1): boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestRuntimeError_Wrapping(t *testing.T) {
	err := fmt.Errorf("run: %w", &RuntimeError{Code: ErrCodeCancelled, Err: context.Canceled})

	assert.True(t, IsCancelled(err))
	assert.True(t, HasCode(err, ErrCodeCancelled))
	assert.False(t, HasCode(err, ErrCodeSetupFailed))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsCancelled(errors.New("plain")))
}
