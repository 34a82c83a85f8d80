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

// Package transfercache implements the Transfer Cache and Active Transfers
// (spec.md section 4.4): small, frequently repeated mailbox-clear replies
// are built once per (remote endpoint, offset) and reposted on reuse;
// larger one-shot offset broadcasts are tracked in an active set and
// retired lazily as their polls report completion.
//
// Cache is not internally synchronized; spec.md section 5 places it under
// the Transport Controller's single recursive lock.
package transfercache

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencpi/transport/transport/backoffconfig"
	"github.com/opencpi/transport/transport/provider"
	"github.com/opencpi/transport/transport/terrors"
)

// tagSize is the width of a mailbox slot's requestType tag (spec.md
// section 6): the word that must be observed clear last by the peer, and
// is therefore copied last in program order (spec.md section 4.4).
const tagSize = 4

// OffsetPair is one (fromOffset, toOffset) entry of a sendOffsets list.
type OffsetPair struct {
	From uint64
	To   uint64
}

type cacheKey struct {
	remoteEndpoint string
	offset         uint64
}

// Cache holds cached mailbox-clear transfer requests and the set of
// in-flight one-shot offset-broadcast transfers.
type Cache struct {
	registry   provider.Registry
	maxRetries int
	cached     map[cacheKey]provider.TransferRequest
	active     []provider.TransferRequest
}

// New constructs an empty Transfer Cache backed by registry. maxRetries
// bounds awaitIdle's poll-until-zero wait before reposting a cached
// transfer (spec.md section 6's Mailbox.CacheRepostMaxRetries).
func New(registry provider.Registry, maxRetries int) *Cache {
	return &Cache{registry: registry, maxRetries: maxRetries, cached: make(map[cacheKey]provider.TransferRequest)}
}

// ClearRemoteMailbox posts a short two-copy transfer that zeroes a peer's
// copy of one of our mailbox slots: the slot's tail first, then its
// requestType tag, so the peer never observes a half-cleared slot with a
// live tag (spec.md section 4.4, "Slot clear ordering" in section 8). The
// copy source is always localZeroOffset, a process-local zero-filled
// scratch area — never the peer's own memory (SPEC_FULL.md section 9,
// supplemented from the original's static zero-fill buffer).
//
// On a cache hit the previously built request is reused: the caller must
// observe it idle (poll-until-zero) before reposting it, so the same
// request object is never posted twice concurrently (spec.md section 8,
// "Cache hit purity").
func (c *Cache) ClearRemoteMailbox(localEndpoint, remoteEndpoint string, localZeroOffset, remoteOffset uint64, slotSize int) error {
	k := cacheKey{remoteEndpoint: remoteEndpoint, offset: remoteOffset}

	if req, ok := c.cached[k]; ok {
		if err := c.awaitIdle(req); err != nil {
			return err
		}
		return req.Post()
	}

	tmpl, err := c.registry.Find(localEndpoint, remoteEndpoint)
	if err != nil {
		return err
	}
	req, err := tmpl.NewTransferRequest()
	if err != nil {
		return err
	}

	if tailSize := slotSize - tagSize; tailSize > 0 {
		req.Copy(localZeroOffset+tagSize, remoteOffset+tagSize, tailSize, provider.OrderFirst)
	}
	req.Copy(localZeroOffset, remoteOffset, tagSize, provider.OrderLast)

	if err := req.Post(); err != nil {
		return err
	}
	c.cached[k] = req
	return nil
}

// SendOffsets sweeps completed active transfers, then builds and posts a
// one-shot transfer carrying an optional protocol-info blob (copied first,
// ordering hint None, so it is fully visible before any offset word) and
// one copy per (fromOffset, toOffset) entry of offsets.
func (c *Cache) SendOffsets(localEndpoint, remoteEndpoint string, offsets []OffsetPair, extraSize int, extraFrom, extraTo uint64) error {
	c.sweepActive()

	tmpl, err := c.registry.Find(localEndpoint, remoteEndpoint)
	if err != nil {
		return err
	}
	req, err := tmpl.NewTransferRequest()
	if err != nil {
		return err
	}

	if extraSize > 0 {
		req.Copy(extraFrom, extraTo, extraSize, provider.OrderNone)
	}
	for _, o := range offsets {
		req.Copy(o.From, o.To, tagSize, provider.OrderNone)
	}

	if err := req.Post(); err != nil {
		return err
	}
	c.active = append(c.active, req)
	return nil
}

// Purge destroys every cached and active transfer record. Called when the
// Circuit Registry becomes empty (spec.md section 4.5).
func (c *Cache) Purge() {
	c.cached = make(map[cacheKey]provider.TransferRequest)
	c.active = nil
}

func (c *Cache) sweepActive() {
	remaining := c.active[:0]
	for _, req := range c.active {
		if req.Status() != 0 {
			remaining = append(remaining, req)
		}
	}
	c.active = remaining
}

// awaitIdle busy-polls req.Status() with bounded backoff until it reports
// complete. spec.md section 9 flags this spin as a candidate for
// condition-variable or eventfd signalling where the provider exposes one;
// here it falls back to bounded polling since the provider interface
// (spec.md section 6) offers only Status().
func (c *Cache) awaitIdle(req provider.TransferRequest) error {
	b, err := backoffconfig.Bounded(c.maxRetries)
	if err != nil {
		return err
	}
	for {
		if req.Status() == 0 {
			return nil
		}
		d := b.NextBackOff()
		if d == backoff.Stop {
			return fmt.Errorf("%w: cached transfer request never completed", terrors.ErrInvariantViolation)
		}
		time.Sleep(d)
	}
}
