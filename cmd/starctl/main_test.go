package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/starwatch/internal/location"
)

func TestResolve(t *testing.T) {
	c := location.MustDefault()

	tests := []struct {
		arg    string
		wantID string
	}{
		{"F017", "F017"},
		{" f017 ", "F017"},
		{"鹿林", "F017"},
		{"合歡", ""},
		{"陽明山", "F022"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			loc, err := resolve(c, tt.arg)
			if tt.wantID == "" {
				require.ErrorIs(t, err, location.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, loc.ID)
		})
	}
}

func TestLocationsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"locations", "--region", "南部"})
	t.Cleanup(func() {
		regionFilter = ""
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "== 南部 ==\n"))
	assert.Contains(t, got, "F017  鹿林天文台")
	assert.NotContains(t, got, "北部")
}

func TestCoverageCommand_UnknownDataset(t *testing.T) {
	rootCmd.SetArgs([]string{"coverage", "--dataset", "monthly"})
	t.Cleanup(func() {
		coverageSet = "short"
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monthly")
}
