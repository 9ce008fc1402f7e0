/*
Copyright 2025 BillsDeck Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ledgersync

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/billsdeck/ledgersync/config"
	"github.com/billsdeck/ledgersync/model"
)

// errorSleep is the pause after a poll cycle that errored, so a broken
// database connection doesn't spin the loop.
const errorSleep = 5 * time.Second

// SyncWorker is the continuous claim loop. Each cycle resets stuck jobs,
// claims up to the configured concurrency and fans the claimed jobs out to
// goroutines joined before the next cycle. Claim exclusivity comes from the
// store; two workers polling the same database never run the same job.
type SyncWorker struct {
	engine      *Ledgersync
	concurrency int
	minSleep    time.Duration
	maxSleep    time.Duration
	stuckWindow time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

func NewSyncWorker(engine *Ledgersync) *SyncWorker {
	concurrency := 3
	minSleep := time.Second
	maxSleep := 3 * time.Second
	stuckWindow := 15 * time.Minute

	cfg, err := config.Fetch()
	if err == nil {
		concurrency = cfg.Worker.Concurrency
		minSleep = cfg.PollIntervalMin()
		maxSleep = cfg.PollIntervalMax()
		stuckWindow = cfg.StuckJobTimeout()
	}

	return &SyncWorker{
		engine:      engine,
		concurrency: concurrency,
		minSleep:    minSleep,
		maxSleep:    maxSleep,
		stuckWindow: stuckWindow,
		stopCh:      make(chan struct{}),
	}
}

func (w *SyncWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	logrus.Info("Sync worker started")
}

func (w *SyncWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	logrus.Info("Sync worker stopped")
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Sync worker context cancelled")
			return
		case <-w.stopCh:
			logrus.Info("Sync worker stop signal received")
			return
		default:
		}

		claimed, err := w.cycle(ctx)
		if err != nil {
			logrus.Error(err)
			w.sleep(ctx, errorSleep)
			continue
		}
		if claimed == 0 {
			w.sleep(ctx, w.idleSleep())
		}
	}
}

// cycle runs one poll: stuck reset, claim, bounded fan-out, join.
func (w *SyncWorker) cycle(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("sync.worker").Start(ctx, "Claim cycle")
	defer span.End()

	reset, err := w.engine.datasource.ResetStuckJobs(ctx, w.stuckWindow, time.Now())
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		logrus.WithField("count", reset).Warn("reset stuck jobs")
	}

	jobs, err := w.engine.datasource.ClaimJobs(ctx, w.concurrency)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	var jobWg sync.WaitGroup
	for _, job := range jobs {
		jobWg.Add(1)
		go func(job *model.SyncJob) {
			defer jobWg.Done()
			if err := w.engine.ProcessJob(ctx, job); err != nil {
				logrus.WithField("job_id", job.JobID).Error(err)
			}
		}(job)
	}
	jobWg.Wait()
	return len(jobs), nil
}

// idleSleep picks a random pause between the configured bounds so a fleet of
// workers doesn't poll in lockstep.
func (w *SyncWorker) idleSleep() time.Duration {
	if w.maxSleep <= w.minSleep {
		return w.minSleep
	}
	return w.minSleep + time.Duration(rand.Int63n(int64(w.maxSleep-w.minSleep)))
}

func (w *SyncWorker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-w.stopCh:
	case <-timer.C:
	}
}
