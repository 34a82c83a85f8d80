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

package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencpi/transport/transport/circuit"
	"github.com/opencpi/transport/transport/endpoint"
	"github.com/opencpi/transport/transport/endpointtable"
	"github.com/opencpi/transport/transport/log"
	"github.com/opencpi/transport/transport/mailboxlock"
	"github.com/opencpi/transport/transport/provider"
	"github.com/opencpi/transport/transport/transfercache"
)

type side struct {
	endpointString string
	table          *endpointtable.Table
	circuits       *circuit.Registry
	engine         *Engine
}

func newSide(t *testing.T, registry *provider.LoopbackRegistry) side {
	t.Helper()
	table := endpointtable.New(registry, "smb")
	local, err := table.AddLocal(context.Background(), strPtr("smb"), false)
	require.NoError(t, err)

	circuits := circuit.NewRegistry(nil)
	cache := transfercache.New(registry, 50)
	locks := mailboxlock.New()

	id, err := endpoint.Parse(local.Endpoint())
	require.NoError(t, err)

	engine, err := New(local.Endpoint(), id.Mailbox, 4, registry, table, circuits, cache, locks, log.NewMockLog())
	require.NoError(t, err)

	return side{endpointString: local.Endpoint(), table: table, circuits: circuits, engine: engine}
}

func strPtr(s string) *string { return &s }

func TestRequestNewConnectionEndToEnd(t *testing.T) {
	registry := provider.NewLoopbackRegistry("smb", 4)

	client := newSide(t, registry)
	server := newSide(t, registry)

	_, err := client.table.AddRemote(server.endpointString)
	require.NoError(t, err)
	_, err = server.table.AddRemote(client.endpointString)
	require.NoError(t, err)

	var announced *circuit.Circuit
	server.engine.SetNewCircuitRequestListener(func(c *circuit.Circuit) {
		announced = c
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = server.engine.CheckMailboxes()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	c, err := client.circuits.CreateCircuit(nil, circuit.ConnectionDescriptor{BufferCount: 1, BufferSize: 4096}, circuit.Flags{}, nil)
	require.NoError(t, err)

	err = client.engine.RequestNewConnection(c, server.endpointString, true, nil, NewDeadline(2*time.Second))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return announced != nil }, 2*time.Second, time.Millisecond)
	require.Equal(t, 1, server.circuits.GetCircuitCount())
}

func TestRequestNewConnectionTimesOutAgainstUnresponsivePeer(t *testing.T) {
	registry := provider.NewLoopbackRegistry("smb", 4)

	client := newSide(t, registry)
	server := newSide(t, registry)

	_, err := client.table.AddRemote(server.endpointString)
	require.NoError(t, err)

	c, err := client.circuits.CreateCircuit(nil, circuit.ConnectionDescriptor{BufferCount: 1, BufferSize: 4096}, circuit.Flags{}, nil)
	require.NoError(t, err)

	err = client.engine.RequestNewConnection(c, server.endpointString, true, nil, NewDeadline(0))
	require.Error(t, err)
}
