// Package workload generates CPU activity for counters to observe.
package workload

import (
	"context"
	"time"
)

// DefaultBurst is the length of one workload burst.
const DefaultBurst = time.Second

// Func adapts a function to a workload with a Burst method.
type Func func(ctx context.Context) error

func (f Func) Burst(ctx context.Context) error {
	return f(ctx)
}

// Cycles returns a workload that burns CPU for d on every burst.
func Cycles(d time.Duration) Func {
	return func(ctx context.Context) error {
		_, err := Spin(ctx, d)
		return err
	}
}

// Spin runs a floating-point loop until d of wall time has passed or ctx is
// done. The returned checksum keeps the loop from being optimized away.
func Spin(ctx context.Context, d time.Duration) (float64, error) {
	deadline := time.Now().Add(d)
	a, b, c := 0.5, 1.0000001, 0.0
	for {
		for i := 0; i < 4096; i++ {
			a = a*b + 0.25
			c += a / (b + float64(i))
			if a > 1e9 {
				a = 0.5
			}
		}
		if !time.Now().Before(deadline) {
			return c, nil
		}
		if err := ctx.Err(); err != nil {
			return c, err
		}
	}
}
