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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/billsdeck/ledgersync/model"
)

func newTestWorker(engine *Ledgersync) *SyncWorker {
	w := NewSyncWorker(engine)
	w.minSleep = 5 * time.Millisecond
	w.maxSleep = 10 * time.Millisecond
	return w
}

func TestSyncWorkerStartStop(t *testing.T) {
	engine, ds := newTestEngine(t)
	ds.On("ResetStuckJobs", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
	ds.On("ClaimJobs", mock.Anything, mock.Anything).Return([]*model.SyncJob{}, nil)

	w := newTestWorker(engine)
	assert.False(t, w.IsRunning())

	w.Start(context.Background())
	assert.True(t, w.IsRunning())

	// Starting again is a no-op.
	w.Start(context.Background())
	assert.True(t, w.IsRunning())

	time.Sleep(30 * time.Millisecond)
	w.Stop()
	assert.False(t, w.IsRunning())

	// Stopping again is a no-op.
	w.Stop()
	assert.False(t, w.IsRunning())
}

func TestSyncWorkerProcessesClaimedJob(t *testing.T) {
	engine, ds := newTestEngine(t)

	job := claimedJob(1)
	cancelled := claimedJob(1)
	cancelled.Status = model.JobStatusCancelled

	processed := make(chan struct{})
	var once sync.Once

	ds.On("ResetStuckJobs", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
	ds.On("ClaimJobs", mock.Anything, 3).Return([]*model.SyncJob{job}, nil).Once()
	ds.On("ClaimJobs", mock.Anything, 3).Return([]*model.SyncJob{}, nil)
	// Cancelled keeps ProcessJob short; the worker's fan-out is the subject.
	ds.On("GetSyncJob", mock.Anything, "job_1").Return(cancelled, nil).Run(func(args mock.Arguments) {
		once.Do(func() { close(processed) })
	})

	w := newTestWorker(engine)
	w.Start(context.Background())
	defer w.Stop()

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never processed the claimed job")
	}
	ds.AssertExpectations(t)
}

func TestSyncWorkerStopsOnContextCancel(t *testing.T) {
	engine, ds := newTestEngine(t)
	ds.On("ResetStuckJobs", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
	ds.On("ClaimJobs", mock.Anything, mock.Anything).Return([]*model.SyncJob{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	w := newTestWorker(engine)
	w.Start(ctx)
	require.True(t, w.IsRunning())

	cancel()
	w.wg.Wait()

	// The loop exited; Stop only flips the flag.
	w.Stop()
	assert.False(t, w.IsRunning())
}

func TestIdleSleepStaysInBounds(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := newTestWorker(engine)

	for i := 0; i < 100; i++ {
		d := w.idleSleep()
		assert.GreaterOrEqual(t, d, w.minSleep)
		assert.Less(t, d, w.maxSleep)
	}
}

func TestIdleSleepDegenerateBounds(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := newTestWorker(engine)
	w.maxSleep = w.minSleep

	assert.Equal(t, w.minSleep, w.idleSleep())
}
