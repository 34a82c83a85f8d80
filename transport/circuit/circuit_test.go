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

package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDataflow struct {
	ready   bool
	pumped  int
	updated []byte
}

func (f *fakeDataflow) Ready() bool { return f.ready }
func (f *fakeDataflow) CheckQueuedTransfers() { f.pumped++ }
func (f *fakeDataflow) UpdateInputs(payload []byte) error {
	f.updated = payload
	return nil
}

func TestCircuitPortSets(t *testing.T) {
	c := &Circuit{}
	c.AddPort(Port{Endpoint: "smb:a;1.0.4"})
	c.AddInputPort(0, Port{Endpoint: "smb:b;1.1.4"})
	c.AddInputPort(1, Port{Endpoint: "smb:c;1.2.4"})

	out, err := c.GetOutputPort()
	require.NoError(t, err)
	assert.Equal(t, "smb:a;1.0.4", out.Endpoint)

	assert.Equal(t, 2, c.GetInputPortSetCount())
	set0, err := c.GetInputPortSet(0)
	require.NoError(t, err)
	assert.Equal(t, "smb:b;1.1.4", set0.Ports[0].Endpoint)

	_, err = c.GetInputPortSet(5)
	assert.Error(t, err)
}

func TestCircuitDataflowDelegation(t *testing.T) {
	c := &Circuit{}
	assert.False(t, c.Ready())
	c.CheckQueuedTransfers()
	require.NoError(t, c.UpdateInputs([]byte("x")))

	df := &fakeDataflow{ready: true}
	c.SetDataflow(df)

	assert.True(t, c.Ready())
	c.CheckQueuedTransfers()
	assert.Equal(t, 1, df.pumped)
	require.NoError(t, c.UpdateInputs([]byte("payload")))
	assert.Equal(t, []byte("payload"), df.updated)
}

func TestCircuitProtocolInfoRoundTrip(t *testing.T) {
	c := &Circuit{}
	c.SetProtocolInfo(128, 4096)
	size, offset := c.GetProtocolInfo()
	assert.Equal(t, 128, size)
	assert.Equal(t, uint64(4096), offset)
}

func TestCircuitFinalizeStampsControlEndpoint(t *testing.T) {
	c := &Circuit{}
	c.Finalize("smb:a;1.0.4")
	assert.Equal(t, "smb:a;1.0.4", c.ControlEndpoint())
}
