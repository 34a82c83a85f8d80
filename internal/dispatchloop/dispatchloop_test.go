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

package dispatchloop

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencpi/transport/transport/log"
)

type countingDispatcher struct {
	calls int32
	fail  bool
}

func (d *countingDispatcher) Dispatch() error {
	atomic.AddInt32(&d.calls, 1)
	if d.fail {
		return errors.New("boom")
	}
	return nil
}

func TestStartRunsDispatchRepeatedly(t *testing.T) {
	d := &countingDispatcher{}

	l, err := Start(d, 1, log.NewMockLog())
	require.NoError(t, err)
	defer l.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&d.calls) >= 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStartToleratesDispatchErrors(t *testing.T) {
	d := &countingDispatcher{fail: true}

	l, err := Start(d, 1, log.NewMockLog())
	require.NoError(t, err)
	defer l.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&d.calls) >= 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStopOnNilLoopIsNoop(t *testing.T) {
	var l *Loop
	l.Stop()
}
