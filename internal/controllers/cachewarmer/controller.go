// Package cachewarmer keeps the dashboard's default window precomputed so the
// first visitor after a restart or cache expiry does not wait on the warehouse.
package cachewarmer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chrissnell/cyclehire/internal/analytics"
	"github.com/chrissnell/cyclehire/internal/service"
	"github.com/chrissnell/cyclehire/pkg/config"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Controller periodically recomputes the default reports.
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	service   *service.Service
	logger    *zap.SugaredLogger
	interval  time.Duration
	intervals []analytics.Interval
	pool      *ants.Pool
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// Stats counts the outcome of one warming pass.
type Stats struct {
	Reports int
	Failed  int
}

// NewController creates a new cache warmer controller
func NewController(ctx context.Context, wg *sync.WaitGroup, svc *service.Service, cfg config.CacheWarmerData, logger *zap.SugaredLogger) (*Controller, error) {
	if svc == nil {
		return nil, fmt.Errorf("analysis service required for cache warmer controller")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if cfg.Interval == "" {
		logger.Info("cachewarmer.interval not provided; defaulting to 30m")
		cfg.Interval = "30m"
	}
	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("invalid cachewarmer interval %q", cfg.Interval)
	}

	var intervals []analytics.Interval
	for _, s := range cfg.Intervals {
		iv, err := analytics.ParseInterval(s)
		if err != nil {
			return nil, fmt.Errorf("cachewarmer: %w", err)
		}
		intervals = append(intervals, iv)
	}
	if len(intervals) == 0 {
		intervals = []analytics.Interval{svc.Options().DefaultInterval}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		logger.Errorf("cache warmer task panicked: %v", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create cache warmer pool: %w", err)
	}

	return &Controller{
		ctx:       ctx,
		wg:        wg,
		service:   svc,
		logger:    logger,
		interval:  interval,
		intervals: intervals,
		pool:      pool,
		stopChan:  make(chan struct{}),
	}, nil
}

// StartController runs the refresh loop in the background until the context
// is cancelled or Stop is called.
func (c *Controller) StartController() error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
	return nil
}

func (c *Controller) run() {
	defer c.pool.Release()

	c.logger.Infof("Cache warmer refreshing %v every %v", c.intervals, c.interval)
	c.refresh()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("Cache warmer stopped (context cancelled)")
			return
		case <-c.stopChan:
			c.logger.Info("Cache warmer stopped (stop requested)")
			return
		case <-ticker.C:
			c.refresh()
		}
	}
}

func (c *Controller) refresh() {
	start := time.Now()
	st := c.Warm(c.ctx)
	if st.Failed > 0 {
		c.logger.Warnf("Cache warm-up finished with %d failures (%d reports) in %v", st.Failed, st.Reports, time.Since(start))
		return
	}
	c.logger.Debugf("Cache warm-up computed %d reports in %v", st.Reports, time.Since(start))
}

// Stop gracefully stops the controller
func (c *Controller) Stop() error {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping cache warmer controller...")
		close(c.stopChan)
	})
	return nil
}

// Warm computes the capacity and flow reports of the default window for every
// configured interval, then the hourly profile of each ranked station.
func (c *Controller) Warm(ctx context.Context) Stats {
	var reports, failed atomic.Int32
	var tasks sync.WaitGroup

	submit := func(what string, fn func() error) {
		tasks.Add(1)
		err := c.pool.Submit(func() {
			defer tasks.Done()
			if err := fn(); err != nil {
				failed.Add(1)
				c.logger.Warnw("cache warm-up failed", "report", what, "error", err)
				return
			}
			reports.Add(1)
		})
		if err != nil {
			tasks.Done()
			failed.Add(1)
			c.logger.Errorf("unable to schedule %s warm-up: %v", what, err)
		}
	}

	var mu sync.Mutex
	ranked := make(map[analytics.Interval][]string)

	params := make(map[analytics.Interval]analytics.Params, len(c.intervals))
	for _, iv := range c.intervals {
		p, err := c.service.Params("", "", string(iv))
		if err != nil {
			failed.Add(1)
			c.logger.Errorf("invalid default window for %s: %v", iv, err)
			continue
		}
		params[iv] = p
	}

	for iv, p := range params {
		submit(fmt.Sprintf("capacity/%s", iv), func() error {
			res, err := c.service.Capacity(ctx, p, 0)
			if err := outcome(res.Status, res.Reason, err); err != nil {
				return err
			}
			names := make([]string, len(res.Data.Stations))
			for i, s := range res.Data.Stations {
				names[i] = s.StationName
			}
			mu.Lock()
			ranked[iv] = names
			mu.Unlock()
			return nil
		})
		submit(fmt.Sprintf("flows/%s", iv), func() error {
			res, err := c.service.Flows(ctx, p)
			return outcome(res.Status, res.Reason, err)
		})
	}
	tasks.Wait()

	// Station profiles are scheduled after the rankings are known so pool
	// workers never wait on each other.
	for iv, names := range ranked {
		p := params[iv]
		for _, name := range names {
			sp := p.WithStation(name)
			submit(fmt.Sprintf("station/%s/%s", iv, name), func() error {
				res, err := c.service.StationHourly(ctx, sp)
				return outcome(res.Status, res.Reason, err)
			})
		}
	}
	tasks.Wait()

	return Stats{Reports: int(reports.Load()), Failed: int(failed.Load())}
}

func outcome(status analytics.Status, reason string, err error) error {
	if err != nil {
		return err
	}
	if status == analytics.StatusFailure {
		return errors.New(reason)
	}
	return nil
}
