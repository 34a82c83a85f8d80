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

// Package mailboxlock implements the process-wide named mailbox lock
// registry (spec.md section 4.3): one mutex per peer, keyed by a 32-bit
// hash of the peer's endpoint string so colliding strings share a lock
// rather than growing the table unboundedly. Hashing with hash/fnv matches
// how the teacher itself hashes strings for a sharding key (see
// agent/session/plugins/port/port_mux.go) — no third-party hash library is
// warranted for a 32-bit string hash (DESIGN.md).
package mailboxlock

import (
	"hash/fnv"
	"sync"
)

// Registry hands out one *sync.Mutex per distinct (hashed) peer endpoint
// string. Mutexes are created on first request and live for the registry's
// lifetime; Close releases them all.
type Registry struct {
	mu    sync.Mutex
	locks map[uint32]*sync.Mutex
}

// New constructs an empty mailbox lock registry.
func New() *Registry {
	return &Registry{locks: make(map[uint32]*sync.Mutex)}
}

// LockFor returns the mutex for remoteEndpoint, creating it on first use.
// The caller is responsible for locking and unlocking it; spec.md section 5
// requires it never be held across a dispatch tick.
func (r *Registry) LockFor(remoteEndpoint string) *sync.Mutex {
	h := hash(remoteEndpoint)

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.locks[h]
	if !ok {
		m = &sync.Mutex{}
		r.locks[h] = m
	}
	return m
}

// Close destroys every mailbox lock record. Callers must ensure no
// negotiation is in flight.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = make(map[uint32]*sync.Mutex)
}

func hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
