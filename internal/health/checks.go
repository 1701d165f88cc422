package health

import (
	"context"
	"errors"
	"fmt"

	"qrcall/pkg/platform/circuit"
)

var errDisconnected = errors.New("not connected")

// Breaker reports a dependency guarded by a circuit breaker as failing while
// the breaker is open.
func Breaker(b *circuit.Breaker) CheckFunc {
	return func(context.Context) error {
		if b.IsOpen() {
			return fmt.Errorf("circuit %s is %s", b.Name(), b.State())
		}
		return nil
	}
}

// Connected adapts a connection flag such as an MQTT client's.
func Connected(isConnected func() bool) CheckFunc {
	return func(context.Context) error {
		if !isConnected() {
			return errDisconnected
		}
		return nil
	}
}
