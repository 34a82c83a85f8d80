// Copyright 2016 Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Amazon Software License (the "License"). You may not
// use this file except in compliance with the License. A copy of the
// License is located at
//
// http://aws.amazon.com/asl/
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package dispatchloop drives a Controller's dispatch() on a periodic
// schedule, the way agent/poll.PollService and agent/association/scheduler
// drive their own poll/association jobs: a scheduler.Job wrapping a plain
// function, started and stopped explicitly. spec.md section 1 treats
// thread/timer primitives as an external collaborator of the transport
// controller core, so this lives outside the transport package tree.
package dispatchloop

import (
	"github.com/carlescere/scheduler"

	"github.com/opencpi/transport/transport/log"
)

// Dispatcher is the narrow slice of controller.Controller this loop drives.
type Dispatcher interface {
	Dispatch() error
}

// scheduleNextRun requests the next tick without waiting out the rest of
// the current interval, mirroring agent/poll/poller.go's own
// scheduleNextRun var (kept as a package var so tests can stub it).
var scheduleNextRun = func(j *scheduler.Job) {
	j.SkipWait <- true
}

// Loop owns the running scheduler.Job for one Dispatcher.
type Loop struct {
	job *scheduler.Job
}

// Start runs d.Dispatch() every intervalSeconds, logging (but not stopping
// on) dispatch errors, matching the teacher's own fire-and-log scheduler
// jobs (agent/longrunning/manager/coreplugin.go's ensurePluginsAreRunning).
func Start(d Dispatcher, intervalSeconds int, logger log.T) (*Loop, error) {
	l := &Loop{}

	job, err := scheduler.Every(intervalSeconds).Seconds().Run(func() {
		l.tick(d, logger)
	})
	if err != nil {
		return nil, err
	}
	l.job = job
	return l, nil
}

func (l *Loop) tick(d Dispatcher, logger log.T) {
	if err := d.Dispatch(); err != nil && logger != nil {
		logger.Errorf("dispatchloop: %v", err)
	}
}

// Stop cancels the scheduled job. Safe to call on a nil Loop.
func (l *Loop) Stop() {
	if l == nil || l.job == nil {
		return
	}
	l.job.Quit <- true
}
