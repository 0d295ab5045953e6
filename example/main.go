package main

import (
	"context"
	"fmt"
	"os"

	"github.com/napolitain/childoverflow/counter"
	"github.com/napolitain/childoverflow/overflow"
	"github.com/napolitain/childoverflow/workload"
)

func main() {
	// A workload that is not a plain busy loop: naive matrix products.
	matmul := workload.Func(func(ctx context.Context) error {
		const n = 160
		a := make([]float64, n*n)
		b := make([]float64, n*n)
		c := make([]float64, n*n)
		for i := range a {
			a[i] = float64(i%7) + 0.5
			b[i] = float64(i%5) - 0.5
		}
		for round := 0; round < 8; round++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				for k := 0; k < n; k++ {
					aik := a[i*n+k]
					for j := 0; j < n; j++ {
						c[i*n+j] += aik * b[k*n+j]
					}
				}
			}
		}
		fmt.Printf("checksum %.1f\n", c[n*n-1])
		return nil
	})

	m := overflow.New(counter.NewPerf(), matmul,
		overflow.WithName("example"),
		overflow.WithIterations(5))

	err := m.Run(context.Background())
	for _, w := range m.Windows() {
		fmt.Printf("window %d: %d overflows in %.3fs\n", w.Index, w.Count, w.Since)
	}
	if overflow.Report(os.Stdout, "example", err) == overflow.Fail {
		os.Exit(1)
	}
}
