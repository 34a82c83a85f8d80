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

package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencpi/transport/transport/circuit"
	"github.com/opencpi/transport/transport/config"
	"github.com/opencpi/transport/transport/log"
	"github.com/opencpi/transport/transport/mailbox"
	"github.com/opencpi/transport/transport/provider"
)

func TestCreateOutputPortNegotiatesEndToEnd(t *testing.T) {
	registry := provider.NewLoopbackRegistry("smb", 4)
	cfg := config.Default()

	server := New(registry, "smb", cfg, log.NewMockLog())
	client := New(registry, "smb", cfg, log.NewMockLog())

	serverIn, err := server.CreateInputPort(context.Background(), nil, circuit.ConnectionDescriptor{BufferCount: 1, BufferSize: 4096}, PortParams{Protocol: "smb"})
	require.NoError(t, err)

	serverSet, err := serverIn.GetInputPortSet(0)
	require.NoError(t, err)
	require.Len(t, serverSet.Ports, 1)
	serverEndpoint := serverSet.Ports[0].Endpoint

	var announced *circuit.Circuit
	server.SetNewCircuitRequestListener(func(c *circuit.Circuit) { announced = c })
	require.NoError(t, server.EnsureMailboxEngine(serverEndpoint))

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
				_ = server.Dispatch()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	created, err := client.CreateOutputPort(context.Background(), circuit.ConnectionDescriptor{BufferCount: 1, BufferSize: 4096}, serverEndpoint, 4096, nil, mailbox.NewDeadline(2*time.Second))
	require.NoError(t, err)
	require.NotNil(t, created)

	require.Eventually(t, func() bool { return announced != nil }, 2*time.Second, time.Millisecond)
	require.Equal(t, 1, server.GetCircuitCount())
}

func TestCreateInputPortReusesProvidedCircuit(t *testing.T) {
	registry := provider.NewLoopbackRegistry("smb", 4)
	ctl := New(registry, "smb", config.Default(), log.NewMockLog())

	c, err := ctl.CreateInputPort(context.Background(), nil, circuit.ConnectionDescriptor{BufferCount: 1, BufferSize: 1024}, PortParams{Protocol: "smb"})
	require.NoError(t, err)
	require.Equal(t, 1, c.GetInputPortSetCount())

	c2, err := ctl.CreateInputPort(context.Background(), c, circuit.ConnectionDescriptor{BufferCount: 1, BufferSize: 1024}, PortParams{Protocol: "smb"})
	require.NoError(t, err)
	require.Same(t, c, c2)

	set, err := c2.GetInputPortSet(0)
	require.NoError(t, err)
	require.Len(t, set.Ports, 2)
}

func TestGetLocalCompatibleEndpointFallsBackToDefault(t *testing.T) {
	registry := provider.NewLoopbackRegistry("smb", 4)
	ctl := New(registry, "smb", config.Default(), log.NewMockLog())

	id, err := ctl.GetLocalCompatibleEndpoint(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "smb", id.Protocol)
}

func TestDeleteCircuitRemovesCircuitAndRejectsRepeat(t *testing.T) {
	registry := provider.NewLoopbackRegistry("smb", 4)
	ctl := New(registry, "smb", config.Default(), log.NewMockLog())

	c, err := ctl.CreateInputPort(context.Background(), nil, circuit.ConnectionDescriptor{BufferCount: 1, BufferSize: 1024}, PortParams{Protocol: "smb"})
	require.NoError(t, err)

	require.NoError(t, ctl.DeleteCircuit(c.ID()))
	require.Equal(t, 0, ctl.GetCircuitCount())

	err = ctl.DeleteCircuit(c.ID())
	require.Error(t, err)
}
