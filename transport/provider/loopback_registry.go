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

package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/opencpi/transport/transport/endpoint"
	"github.com/opencpi/transport/transport/terrors"
)

// defaultRegionSize is the size a LoopbackRegistry gives every local
// endpoint's memory region unless the caller overrides it.
const defaultRegionSize = 1 << 20

// LoopbackRegistry is the in-memory reference Transfer Provider Registry
// (spec.md section 1; SPEC_FULL.md section 3 ADDED): every endpoint lives
// in the same process, so "posting a transfer" is a direct byte copy
// between two memRegion buffers. It exists so the controller and mailbox
// protocol engine can be exercised end-to-end in tests without a real PIO
// or network-mapped transport.
type LoopbackRegistry struct {
	mu           sync.Mutex
	protocol     string
	maxMailboxes int
	regionSize   int
	nextMailbox  int
	resources    map[string]*loopbackResources
}

// NewLoopbackRegistry constructs a registry serving a single protocol. Each
// finalised local endpoint is assigned the next free mailbox number up to
// maxMailboxes.
func NewLoopbackRegistry(protocol string, maxMailboxes int) *LoopbackRegistry {
	return &LoopbackRegistry{
		protocol:     protocol,
		maxMailboxes: maxMailboxes,
		regionSize:   defaultRegionSize,
		resources:    make(map[string]*loopbackResources),
	}
}

func (l *LoopbackRegistry) ListSupportedEndpoints() []string {
	return []string{fmt.Sprintf("%s:loopback;%d.0.%d", l.protocol, l.regionSize, l.maxMailboxes)}
}

func (l *LoopbackRegistry) FactoryFor(protocol string) (Factory, error) {
	if protocol != l.protocol {
		return nil, fmt.Errorf("%w: %q", terrors.ErrUnsupportedEndpoint, protocol)
	}
	return &loopbackFactory{registry: l}, nil
}

func (l *LoopbackRegistry) Find(source, dest string) (TransferTemplate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	srcRes, ok := l.resources[source]
	if !ok {
		return nil, fmt.Errorf("%w: no resources for source %q", terrors.ErrUnsupportedEndpoint, source)
	}
	dstRes, ok := l.resources[dest]
	if !ok {
		return nil, fmt.Errorf("%w: no resources for dest %q", terrors.ErrUnsupportedEndpoint, dest)
	}
	return &loopbackTemplate{src: srcRes, dst: dstRes}, nil
}

func (l *LoopbackRegistry) CreateSMBResources(endpointString string) (LocalResources, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createLocked(endpointString)
}

func (l *LoopbackRegistry) createLocked(endpointString string) (*loopbackResources, error) {
	if res, ok := l.resources[endpointString]; ok {
		return res, nil
	}
	res := &loopbackResources{endpoint: endpointString, region: NewMemoryRegion(l.regionSize)}
	l.resources[endpointString] = res
	return res, nil
}

func (l *LoopbackRegistry) GetSMBResources(endpointString string) (Resources, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.resources[endpointString]
	if !ok {
		return nil, fmt.Errorf("%w: no resources for %q", terrors.ErrInvariantViolation, endpointString)
	}
	return res, nil
}

type loopbackFactory struct {
	registry *LoopbackRegistry
}

func (f *loopbackFactory) Protocol() string { return f.registry.protocol }

func (f *loopbackFactory) GetEndpoint(ctx context.Context, endpointString string, allocate bool) (string, error) {
	finalized, err := f.finalize(endpointString)
	if err != nil {
		return "", err
	}
	if allocate {
		if _, err := f.registry.CreateSMBResources(finalized); err != nil {
			return "", err
		}
	}
	return finalized, nil
}

func (f *loopbackFactory) NewCompatibleEndpoint(ctx context.Context, remoteString string) (string, error) {
	remote, err := endpoint.Parse(remoteString)
	if err != nil {
		return "", err
	}

	f.registry.mu.Lock()
	mailbox := f.registry.nextMailbox
	if mailbox == remote.Mailbox {
		mailbox++
	}
	if mailbox >= f.registry.maxMailboxes {
		f.registry.mu.Unlock()
		return "", fmt.Errorf("%w: exhausted %d mailboxes", terrors.ErrEndpointCapacityExceeded, f.registry.maxMailboxes)
	}
	f.registry.nextMailbox = mailbox + 1
	f.registry.mu.Unlock()

	id := endpoint.Identity{
		Protocol:     f.registry.protocol,
		Mailbox:      mailbox,
		MaxMailboxes: f.registry.maxMailboxes,
		Size:         remote.Size,
		Opaque:       "loopback",
		Local:        true,
	}
	return id.Format(), nil
}

// finalize assigns a mailbox number (and maxMailboxes, if bare) to
// endpointString if it is not already a full endpoint string.
func (f *loopbackFactory) finalize(endpointString string) (string, error) {
	if !endpoint.IsBareProtocol(endpointString) {
		if _, err := endpoint.Parse(endpointString); err != nil {
			return "", err
		}
		return endpointString, nil
	}

	f.registry.mu.Lock()
	defer f.registry.mu.Unlock()

	if f.registry.nextMailbox >= f.registry.maxMailboxes {
		return "", fmt.Errorf("%w: exhausted %d mailboxes", terrors.ErrEndpointCapacityExceeded, f.registry.maxMailboxes)
	}
	id := endpoint.Identity{
		Protocol:     f.registry.protocol,
		Mailbox:      f.registry.nextMailbox,
		MaxMailboxes: f.registry.maxMailboxes,
		Size:         uint64(f.registry.regionSize),
		Opaque:       "loopback",
		Local:        true,
	}
	f.registry.nextMailbox++
	return id.Format(), nil
}

type loopbackTemplate struct {
	src, dst *loopbackResources
}

func (t *loopbackTemplate) NewTransferRequest() (TransferRequest, error) {
	return &loopbackRequest{src: t.src.region.(*memRegion), dst: t.dst.region.(*memRegion)}, nil
}

type loopbackCopy struct {
	srcOffset, dstOffset uint64
	length               int
	hint                 OrderHint
}

// loopbackRequest posts its copies synchronously and in program order, so
// First/Middle/Last/None ordering hints are observed by construction; it
// reports Status() == 0 (complete) immediately after Post.
type loopbackRequest struct {
	src, dst *memRegion
	copies   []loopbackCopy
	posted   bool
}

func (r *loopbackRequest) Copy(srcOffset, dstOffset uint64, length int, hint OrderHint) {
	r.copies = append(r.copies, loopbackCopy{srcOffset, dstOffset, length, hint})
}

func (r *loopbackRequest) Post() error {
	for _, c := range r.copies {
		src, err := r.src.Map(c.srcOffset, c.length)
		if err != nil {
			return err
		}
		dst, err := r.dst.Map(c.dstOffset, c.length)
		if err != nil {
			return err
		}
		copy(dst, src)
	}
	r.posted = true
	return nil
}

func (r *loopbackRequest) Status() int {
	if r.posted {
		return 0
	}
	return 1
}
