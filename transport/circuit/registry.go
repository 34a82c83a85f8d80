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
	"fmt"
	"math/rand"
	"os"
	"time"
)

// Registry holds circuits in insertion order with linear lookup by
// identifier (spec.md section 4.5). The expected population is small, so a
// hashed index is not warranted (spec.md section 9).
type Registry struct {
	nextID   uint32
	circuits []*Circuit
	onEmpty  func()
}

// NewRegistry constructs an empty Circuit Registry. onEmpty, if non-nil, is
// invoked whenever deleting a circuit leaves the registry empty — the
// controller wires this to the Transfer Cache's Purge (spec.md section
// 4.5).
func NewRegistry(onEmpty func()) *Registry {
	return &Registry{nextID: seedID(), onEmpty: onEmpty}
}

// seedID derives the initial circuit-id counter from a cryptographically
// weak random source combined with the process id (spec.md section 3), to
// lower — not eliminate — the chance of collision across cooperating
// processes; math/rand is deliberately used in place of crypto/rand here.
func seedID() uint32 {
	src := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(os.Getpid())))
	return src.Uint32()
}

// Negotiate, when CreateCircuit is called with flags.NewConnection set,
// drives the outbound mailbox negotiation for the freshly built circuit.
// Implemented outside this package to avoid a dependency on the mailbox
// protocol engine (spec.md section 1 treats this as an external step of
// createCircuit, not internal circuit-registry logic).
type Negotiate func(c *Circuit) error

// CreateCircuit builds and registers a circuit (spec.md section 4.5).
//
//   - If id is nil, it is assigned from the monotonic counter.
//   - If a circuit with id already exists, it is deleted first.
//   - If flags.NewConnection, negotiate runs against the new circuit; on
//     failure the circuit is deleted and the error propagated.
func (r *Registry) CreateCircuit(id *uint32, desc ConnectionDescriptor, flags Flags, negotiate Negotiate) (*Circuit, error) {
	var assigned uint32
	if id == nil {
		r.nextID++
		assigned = r.nextID
	} else {
		assigned = *id
		if _, ok := r.find(assigned); ok {
			_ = r.DeleteCircuit(assigned)
		}
	}

	c := &Circuit{id: assigned, desc: desc, flags: flags}

	if flags.NewConnection && negotiate != nil {
		if err := negotiate(c); err != nil {
			return nil, err
		}
	}

	r.circuits = append(r.circuits, c)
	return c, nil
}

// DeleteCircuit removes a circuit from the registry. If the registry
// becomes empty, onEmpty is invoked.
func (r *Registry) DeleteCircuit(id uint32) error {
	for i, c := range r.circuits {
		if c.id == id {
			r.circuits = append(r.circuits[:i], r.circuits[i+1:]...)
			if len(r.circuits) == 0 && r.onEmpty != nil {
				r.onEmpty()
			}
			return nil
		}
	}
	return fmt.Errorf("circuit: no circuit with id %d", id)
}

// GetCircuit returns the circuit with the given id.
func (r *Registry) GetCircuit(id uint32) (*Circuit, bool) {
	return r.find(id)
}

// GetCircuitCount returns the number of live circuits.
func (r *Registry) GetCircuitCount() int { return len(r.circuits) }

// All returns every live circuit, in insertion order. The slice is a copy:
// callers may range over it without holding a lock against concurrent
// registry mutation.
func (r *Registry) All() []*Circuit {
	out := make([]*Circuit, len(r.circuits))
	copy(out, r.circuits)
	return out
}

func (r *Registry) find(id uint32) (*Circuit, bool) {
	for _, c := range r.circuits {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}
