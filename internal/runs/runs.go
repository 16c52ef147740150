// Package runs executes field sweeps and records them in the run store.
package runs

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/platetemp/internal/db"
	"github.com/banshee-data/platetemp/internal/field"
	"github.com/banshee-data/platetemp/internal/monitoring"
	"github.com/banshee-data/platetemp/internal/plate"
	"github.com/banshee-data/platetemp/internal/timeutil"
)

// Request describes one sweep.
type Request struct {
	Label    string
	Domain   plate.Domain
	Options  plate.Options
	Grid     field.Grid
	GridStep float64 // informational; zero when the grid came from axis specs
	Workers  int
	Progress func(done, total int)
}

// Service runs sweeps. A nil store runs without persisting.
type Service struct {
	store    *db.RunStore
	observer plate.Observer
	clock    timeutil.Clock
}

// NewService returns a Service. observer may be nil; a nil clock uses the
// real clock.
func NewService(store *db.RunStore, observer plate.Observer, clock timeutil.Clock) *Service {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Service{store: store, observer: observer, clock: clock}
}

// Run sweeps req.Grid and stores the result. The returned run is non-nil
// whenever the run was recorded, including failed and cancelled sweeps.
func (s *Service) Run(ctx context.Context, req Request) (*db.Run, *field.Field, error) {
	if err := req.Domain.Validate(); err != nil {
		return nil, nil, err
	}
	if err := req.Grid.Validate(req.Domain); err != nil {
		return nil, nil, err
	}
	var opts []plate.Option
	if s.observer != nil {
		opts = append(opts, plate.WithObserver(s.observer))
	}
	est, err := plate.NewEstimator(req.Options, opts...)
	if err != nil {
		return nil, nil, err
	}

	var run *db.Run
	if s.store != nil {
		run = &db.Run{
			Label:    req.Label,
			Domain:   req.Domain,
			Options:  req.Options,
			GridStep: req.GridStep,
		}
		if err := s.store.InsertRun(run); err != nil {
			return nil, nil, fmt.Errorf("recording run: %w", err)
		}
		monitoring.Logf("run %s started: %d points", run.RunID, req.Grid.Points())
	}

	f, err := field.Sweep(ctx, est, req.Domain, req.Grid, field.SweepOptions{
		Workers:  req.Workers,
		Progress: req.Progress,
		Clock:    s.clock,
	})
	if err != nil {
		if run != nil {
			status := db.RunFailed
			if errors.Is(err, plate.ErrCancelled) {
				status = db.RunCancelled
			}
			if ferr := s.store.FailRun(run.RunID, status, err); ferr != nil {
				monitoring.Logf("run %s: failed to record %s: %v", run.RunID, status, ferr)
			}
			run, _ = s.reload(run)
		}
		return run, nil, err
	}

	if run != nil {
		if err := s.store.CompleteRun(run.RunID, f); err != nil {
			return run, f, fmt.Errorf("storing field: %w", err)
		}
		run, err = s.reload(run)
		if err != nil {
			return nil, f, err
		}
		monitoring.Logf("run %s complete in %s", run.RunID, f.Elapsed)
	}
	return run, f, nil
}

func (s *Service) reload(run *db.Run) (*db.Run, error) {
	got, err := s.store.GetRun(run.RunID)
	if err != nil {
		return run, err
	}
	return got, nil
}
