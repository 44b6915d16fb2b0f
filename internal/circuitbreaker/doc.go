// Package circuitbreaker stops calling a failing alert transport.
//
// After a run of consecutive delivery failures the breaker opens and
// further batches are dropped without a network call until the reset
// timeout passes. One trial call is then let through (HALF-OPEN): success
// closes the breaker, failure opens it again.
//
//   - CLOSED: deliveries go through
//   - OPEN: deliveries are rejected with ErrOpen
//   - HALF-OPEN: the next delivery is a trial
//
// Usage:
//
//	cb := circuitbreaker.New(5, 30*time.Second)
//	err := cb.Execute(func() error {
//	    return transport.Send(ctx, text)
//	})
//	if errors.Is(err, circuitbreaker.ErrOpen) {
//	    // batch dropped without calling the transport
//	}
package circuitbreaker
