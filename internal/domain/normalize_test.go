package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCityName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mumbai[1]", "Mumbai"},
		{"  Mumbai [1] ", "Mumbai"},
		{"Pune, Maharashtra", "Pune"},
		{"Navi Mumbai[a][2]", "Navi Mumbai"},
		{"[a]Navi Mumbai[1]", "Navi Mumbai"},
		{"Vasai-Virar[b], Maharashtra", "Vasai-Virar"},
		{"Delhi", "Delhi"},
		{"", ""},
		{"[1]", ""},
		{",Pune", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeCityName(tc.in))
		})
	}
}

func TestNormalizeCityName_Idempotent(t *testing.T) {
	for _, in := range []string{"Mumbai[1]", "Pune, Maharashtra", " Surat ", "Navi Mumbai[a][2]"} {
		once := NormalizeCityName(in)
		assert.Equal(t, once, NormalizeCityName(once), in)
	}
}

func TestNormalizeCityName_CaseSensitive(t *testing.T) {
	assert.NotEqual(t, NormalizeCityName("pune"), NormalizeCityName("Pune"))
}
