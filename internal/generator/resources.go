package generator

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

const pageSize = 4096

// Resources is the processing load simulated for each product
type Resources struct {
	CPU      time.Duration // total busy time, spread over GOMAXPROCS goroutines
	MemoryMB int           // resident memory held while the CPU load runs
}

// Consume allocates and touches the memory, then spins every core for its
// share of the CPU time. It returns ctx.Err() as soon as ctx is done.
func (r Resources) Consume(ctx context.Context) error {
	var buf []byte
	if r.MemoryMB > 0 {
		buf = make([]byte, r.MemoryMB<<20)
		for i := 0; i < len(buf); i += pageSize {
			buf[i] = byte(i)
		}
	}

	if r.CPU > 0 {
		procs := runtime.GOMAXPROCS(0)
		share := r.CPU / time.Duration(procs)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < procs; i++ {
			g.Go(func() error {
				return spin(gctx, share)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	runtime.KeepAlive(buf)
	return ctx.Err()
}

// spin burns CPU for d, checking ctx every few thousand iterations
func spin(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	x := uint64(1)
	for i := 0; ; i++ {
		x = x*6364136223846793005 + 1442695040888963407
		if i&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if time.Now().After(deadline) {
				break
			}
		}
	}
	if x == 0 {
		runtime.Gosched()
	}
	return nil
}
