package orders

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2025, 11, 20, 16, 35, 21, 0, time.UTC)
	n := NewOrderNumber(now)

	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{18}$`), n)
	assert.True(t, strings.HasPrefix(n, "ORD-20251120163521"), "timestamp prefix, got %s", n)

	// suffix always 4 digits, zero-padding irrelevant since range is 1000..9999
	suffix := strings.TrimPrefix(n, "ORD-20251120163521")
	assert.Len(t, suffix, 4)
}
