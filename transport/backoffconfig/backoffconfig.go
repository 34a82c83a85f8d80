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

// Package backoffconfig wraps github.com/cenkalti/backoff/v4 the way the
// teacher's agent/backoffconfig package wraps it, giving the mailbox
// protocol engine's cooperative polling loops (spec.md section 4.6) and the
// transfer cache's reuse wait (spec.md section 4.4) a bounded, jittered
// retry schedule instead of a raw spin.
package backoffconfig

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultMultiplier      = 1.6
	defaultMaxIntervalMs   = 50
	defaultJitterFactor    = 0.2
	defaultInitialInterval = 1 * time.Millisecond
)

// PollBackoff returns a backoff that never gives up on its own: callers
// that need a hard deadline (spec.md section 4.6's ServerNotResponding
// timeout) wrap it with backoff.WithContext and a context.WithTimeout, or
// check a caller-supplied timer between attempts the way
// requestNewConnection does.
func PollBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultInitialInterval
	b.MaxInterval = defaultMaxIntervalMs * time.Millisecond
	b.Multiplier = defaultMultiplier
	b.RandomizationFactor = defaultJitterFactor
	b.MaxElapsedTime = 0 // unbounded; the caller's timer decides when to stop
	b.Reset()
	return b
}

// Bounded returns a PollBackoff capped at maxRetries attempts, used by the
// transfer cache when reposting a cached transfer: a cache hit must observe
// the previous post complete before reposting, and that wait is bounded so a
// wedged peer cannot hang the controller lock forever.
func Bounded(maxRetries int) (backoff.BackOff, error) {
	if maxRetries <= 0 {
		return nil, fmt.Errorf("backoffconfig: maxRetries must be positive, got %d", maxRetries)
	}
	return backoff.WithMaxRetries(PollBackoff(), uint64(maxRetries)), nil
}
