package crontab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExpression(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "*/5 * * * *", want: "*/5 * * * *"},
		{in: "  0 3 * * 1-5\n", want: "0 3 * * 1-5"},
		{in: "0 0 1 1 * 2030", want: "0 0 1 1 * 2030"},
		{in: "* * *", wantErr: true},
		{in: "", wantErr: true},
		{in: "* * * * *\n* * * * * rm -rf /", wantErr: true},
		{in: "* * * * * # FaaS PiZero bar", wantErr: true},
		{in: "0 3 * * *#", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeExpression(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidExpression)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 2, 0, 0, time.UTC)

	next, err := NextRun("*/5 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC), next)

	next, err = NextRun("0 3 * * * extra", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), next)

	_, err = NextRun("61 * * * *", from)
	assert.Error(t, err)
}
