package firebase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemberIDFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]interface{}
		want   int64
		ok     bool
	}{
		{"json number", map[string]interface{}{"member_id": float64(17)}, 17, true},
		{"int", map[string]interface{}{"member_id": int64(3)}, 3, true},
		{"missing", map[string]interface{}{}, 0, false},
		{"zero", map[string]interface{}{"member_id": float64(0)}, 0, false},
		{"string", map[string]interface{}{"member_id": "17"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := memberIDFromClaims(tt.claims)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
