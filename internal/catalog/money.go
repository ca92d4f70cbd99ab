package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-shop-api.git/internal/errs"
)

// Prices are stored as integer cents. The API and CSV edges speak decimal
// strings with at most two fraction digits ("10.00", "5", "5.5").

func ParsePrice(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errs.Validationf("invalid price %q", s)
	}
	whole, frac, _ := strings.Cut(s, ".")
	// both parts must be bare digits; ParseInt alone would accept "+5" and
	// a signed fraction like "5.-5"
	if !allDigits(whole) || len(frac) > 2 || (frac != "" && !allDigits(frac)) {
		return 0, errs.Validationf("invalid price %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, errs.Validationf("invalid price %q", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, errs.Validationf("invalid price %q", s)
	}
	return w*100 + f, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func FormatPrice(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
