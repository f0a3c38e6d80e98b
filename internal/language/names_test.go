package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"el", "Greek"},
		{"ar", "Arabic"},
		{"en", "English"},
		{"pt-BR", "Portuguese"},
		{"zz", DefaultName},
		{"", DefaultName},
		{"not a code", DefaultName},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.code))
		})
	}
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("el"))
	assert.False(t, Known("zz"))
}
