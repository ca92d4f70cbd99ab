package orders

import (
	"fmt"
	"math/rand"
	"time"
)

// NewOrderNumber builds "ORD-" + YYYYMMDDHHMMSS + 4 random digits.
// Uniqueness is probabilistic here and enforced by the DB constraint on
// order_number; the orchestrator retries with a fresh number on conflict.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s%04d", now.Format("20060102150405"), 1000+rand.Intn(9000))
}
