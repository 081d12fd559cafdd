package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func lookup(id int64) (string, error) {
	if id == 0 {
		return "", errors.New("division 0 not found")
	}
	return "Cagayan", nil
}

func TestMust(t *testing.T) {
	tests := []struct {
		name      string
		id        int64
		want      string
		wantPanic string
	}{
		{name: "value", id: 1, want: "Cagayan"},
		{name: "error", id: 0, wantPanic: "unexpected error: division 0 not found"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantPanic != "" {
				assert.PanicsWithValue(t, tt.wantPanic, func() { Must(lookup(tt.id)) })
				return
			}
			assert.Equal(t, tt.want, Must(lookup(tt.id)))
		})
	}
}
