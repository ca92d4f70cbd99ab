package kafka

import (
	"sync"
	"testing"
)

func TestPublishAfterClose(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "orders.test", 4)
	p.Close()
	p.Close() // idempotent

	// must be a no-op, not a panic on the closed inbox
	p.Publish([]byte("k"), []byte("v"))
}

func TestPublishRacingClose(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "orders.test", 256)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 16; j++ {
				p.Publish([]byte("k"), []byte("v"))
			}
		}()
	}
	p.Close()
	wg.Wait()
}
