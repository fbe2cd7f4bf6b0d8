// Copyright 2025 cinerec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package parallel schedules model fitting and evaluation jobs across
// worker goroutines.
package parallel

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cinerec-io/cinerec/base/log"
)

const chanSize = 1024

// Parallel runs nJobs jobs on nWorkers workers. worker receives the worker id
// and the job id. The first error aborts scheduling and is returned; ctx
// cancellation aborts outstanding work.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(workerId, jobId int) error) error {
	if nWorkers <= 1 {
		for i := 0; i < nJobs; i++ {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			if err := worker(0, i); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}
	c := make(chan int, chanSize)
	// producer
	go func() {
		defer close(c)
		for i := 0; i < nJobs; i++ {
			select {
			case <-ctx.Done():
				return
			case c <- i:
			}
		}
	}()
	// consumer
	var wg sync.WaitGroup
	errs := make([]error, nJobs)
	for j := 0; j < nWorkers; j++ {
		workerId := j
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer checkPanic()
			for {
				select {
				case <-ctx.Done():
					return
				case jobId, ok := <-c:
					if !ok {
						return
					}
					if err := ctx.Err(); err != nil {
						errs[jobId] = err
						return
					}
					if err := worker(workerId, jobId); err != nil {
						errs[jobId] = err
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// For runs nJobs jobs on nWorkers workers without error propagation.
func For(nJobs, nWorkers int, worker func(jobId int)) {
	if nWorkers <= 1 {
		for i := 0; i < nJobs; i++ {
			worker(i)
		}
		return
	}
	c := make(chan int, chanSize)
	go func() {
		for i := 0; i < nJobs; i++ {
			c <- i
		}
		close(c)
	}()
	var wg sync.WaitGroup
	for j := 0; j < nWorkers; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer checkPanic()
			for jobId := range c {
				worker(jobId)
			}
		}()
	}
	wg.Wait()
}

// Split splits jobs into n ranges as evenly as possible.
func Split(jobs, n int) [][]int {
	groups := make([][]int, n)
	for i := 0; i < jobs; i++ {
		groups[i%n] = append(groups[i%n], i)
	}
	return groups
}

func checkPanic() {
	if r := recover(); r != nil {
		log.Logger().Error("panic recovered", zap.Any("panic", r))
	}
}
