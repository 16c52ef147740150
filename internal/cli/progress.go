package cli

import (
	"sync"
	"sync/atomic"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/banshee-data/platetemp/internal/timeutil"
)

// sweepProgress counts finished grid points. update is passed to
// field.SweepOptions.Progress.
type sweepProgress struct {
	done  atomic.Int64
	total atomic.Int64
}

func (p *sweepProgress) update(done, total int) {
	p.done.Store(int64(done))
	p.total.Store(int64(total))
}

// startProgress logs p on every tick of clock until the returned stop is
// called. stop waits for the logging goroutine to exit.
func startProgress(clock timeutil.Clock, logger *charmlog.Logger, p *sweepProgress, every time.Duration) (stop func()) {
	ticker := clock.NewTicker(every)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.C():
				done, total := p.done.Load(), p.total.Load()
				if total == 0 {
					continue
				}
				logger.Info("sweeping", "done", done, "total", total, "pct", 100*done/total)
			case <-quit:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(quit)
			wg.Wait()
		})
	}
}
