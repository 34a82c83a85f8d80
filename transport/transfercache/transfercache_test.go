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

package transfercache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opencpi/transport/transport/provider"
)

func newLoopbackPair(t *testing.T) (registry *provider.LoopbackRegistry, local, remote string) {
	t.Helper()
	registry = provider.NewLoopbackRegistry("smb", 4)

	factory, err := registry.FactoryFor("smb")
	require.NoError(t, err)

	localEP, err := factory.GetEndpoint(context.Background(), "smb", true)
	require.NoError(t, err)
	remoteEP, err := factory.NewCompatibleEndpoint(context.Background(), localEP)
	require.NoError(t, err)
	_, err = registry.CreateSMBResources(remoteEP)
	require.NoError(t, err)

	return registry, localEP, remoteEP
}

func TestClearRemoteMailboxCachesAndReposts(t *testing.T) {
	registry, local, remote := newLoopbackPair(t)
	c := New(registry, 50)

	require.NoError(t, c.ClearRemoteMailbox(local, remote, 512, 0, 64))
	require.Len(t, c.cached, 1)

	require.NoError(t, c.ClearRemoteMailbox(local, remote, 512, 0, 64))
	require.Len(t, c.cached, 1, "second call must reuse the cached request, not create a new one")
}

func TestSendOffsetsTracksActiveTransfer(t *testing.T) {
	registry, local, remote := newLoopbackPair(t)
	c := New(registry, 50)

	err := c.SendOffsets(local, remote, []OffsetPair{{From: 8, To: 16}}, 4, 0, 32)
	require.NoError(t, err)

	c.sweepActive()
	require.Empty(t, c.active, "loopback transfers complete synchronously and should sweep away immediately")
}

func TestPurgeClearsEverything(t *testing.T) {
	registry, local, remote := newLoopbackPair(t)
	c := New(registry, 50)

	require.NoError(t, c.ClearRemoteMailbox(local, remote, 512, 0, 64))
	c.Purge()

	require.Empty(t, c.cached)
	require.Empty(t, c.active)
}
