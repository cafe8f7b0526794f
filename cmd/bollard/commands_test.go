package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplicaCount(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    int
		wantErr string
	}{
		{name: "valid", arg: "3", want: 3},
		{name: "lower bound", arg: "1", want: 1},
		{name: "upper bound", arg: "10", want: 10},
		{name: "non-numeric", arg: "abc", wantErr: "must be a number"},
		{name: "empty", arg: "", wantErr: "must be a number"},
		{name: "zero", arg: "0", wantErr: "between 1 and 10"},
		{name: "above maximum", arg: "11", wantErr: "between 1 and 10"},
		{name: "negative", arg: "-1", wantErr: "between 1 and 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReplicaCount(tt.arg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Bad scale input must fail before the command ever loads configuration
// or connects to Docker.
func TestScaleCommandRejectsBadInputBeforeAnyMutation(t *testing.T) {
	err := scaleCmd.RunE(scaleCmd, []string{"shop", "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a number")

	err = scaleCmd.RunE(scaleCmd, []string{"shop", "11"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 10")
}
