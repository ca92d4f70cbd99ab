package redisx

import "time"

const (
	// Auth token: auth:token:{token} -> "{user_id}:{role}"
	KeyAuthToken = "auth:token:%s"

	// Cache order status: order_status:{order_id} -> {"status": "...", ...}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing di notifier: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
