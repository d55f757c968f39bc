package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bdougie/physeval/internal/config"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitSuccess},
		{"runtime error", errors.New("dataset unreadable"), ExitError},
		{"configuration error", config.ErrInvalid, ExitConfig},
		{"wrapped configuration error", fmt.Errorf("%w: frames must be at least 1", config.ErrInvalid), ExitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
