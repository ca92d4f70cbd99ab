package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-api.git/internal/errs"
)

func TestParsePrice(t *testing.T) {
	cases := map[string]int64{
		"10.00":  1000,
		"5":      500,
		"5.5":    550,
		"0.99":   99,
		"0":      0,
		" 12.34": 1234,
	}
	for in, want := range cases {
		got, err := ParsePrice(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	for _, in := range []string{"", "-1", "1.234", "abc", "1.2.3", "1,50", "5.-5", "0.-5", "1.+5", "+5", "-0.50"} {
		_, err := ParsePrice(in)
		assert.ErrorIs(t, err, errs.ErrValidation, "input %q", in)
	}
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "35.00", FormatPrice(3500))
	assert.Equal(t, "0.99", FormatPrice(99))
	assert.Equal(t, "0.00", FormatPrice(0))
	assert.Equal(t, "10.05", FormatPrice(1005))
}
