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

// Package endpointtable implements the Endpoint Table (spec.md section
// 4.2): two insertion-ordered sequences, local finalised endpoints and
// remote known endpoints, indexed by full endpoint string with linear
// lookup — the expected population is small (tens), so a hashed map would
// be premature (spec.md section 9).
//
// Table is not internally synchronized: spec.md section 5 places it under
// the Transport Controller's single recursive lock, so every exported
// method here assumes the caller already holds that lock.
package endpointtable

import (
	"context"
	"fmt"

	"github.com/opencpi/transport/transport/endpoint"
	"github.com/opencpi/transport/transport/provider"
	"github.com/opencpi/transport/transport/terrors"
)

type localEntry struct {
	str       string
	identity  endpoint.Identity
	resources provider.LocalResources
}

type remoteEntry struct {
	str       string
	identity  endpoint.Identity
	resources provider.Resources
}

// Table is the Endpoint Table.
type Table struct {
	registry        provider.Registry
	defaultProtocol string

	local   []localEntry
	remote  []remoteEntry
	cached  *string // the lazily-created default endpoint string
}

// New constructs an empty Endpoint Table backed by registry. defaultProtocol
// is the built-in protocol AddLocal(nil) tries first (spec.md section 4.2);
// if registry has no factory for it, the first entry of
// registry.ListSupportedEndpoints is used instead.
func New(registry provider.Registry, defaultProtocol string) *Table {
	return &Table{registry: registry, defaultProtocol: defaultProtocol}
}

// IsLocal reports whether s names an already-registered local endpoint.
func (t *Table) IsLocal(s string) bool {
	_, ok := t.findLocal(s)
	return ok
}

// GetResources returns the resources registered for s, local or remote.
func (t *Table) GetResources(s string) (provider.Resources, error) {
	if e, ok := t.findLocal(s); ok {
		return e.resources, nil
	}
	if e, ok := t.findRemote(s); ok {
		return e.resources, nil
	}
	return nil, fmt.Errorf("%w: no resources for endpoint %q", terrors.ErrInvariantViolation, s)
}

// RemoveLocal deletes a local endpoint's entry from the table. Its
// resources are not released: the provider registry that created them
// keeps them, and provider.LocalResources has no release operation.
func (t *Table) RemoveLocal(s string) {
	for i, e := range t.local {
		if e.str == s {
			t.local = append(t.local[:i], t.local[i+1:]...)
			return
		}
	}
}

// AddLocal implements spec.md section 4.2's addLocal:
//
//   - s == nil: return the cached default endpoint, creating it lazily.
//   - s names only a protocol: delegate to AddLocalFromProtocol.
//   - s is a full string and a local endpoint of the same protocol and
//     maxMailboxes (but a different mailbox) already exists: reuse it.
//   - otherwise: create a new local endpoint compatible with s.
func (t *Table) AddLocal(ctx context.Context, s *string, compatibleWith bool) (provider.LocalResources, error) {
	if s == nil {
		return t.addDefault(ctx)
	}
	if endpoint.IsBareProtocol(*s) {
		return t.AddLocalFromProtocol(ctx, *s)
	}

	remote, err := endpoint.Parse(*s)
	if err != nil {
		return nil, err
	}

	if !compatibleWith {
		if e, ok := t.findReusableLocal(remote); ok {
			return e.resources, nil
		}
	}

	return t.createCompatible(ctx, *s)
}

// AddLocalFromProtocol finalises the first supported-endpoint template
// whose protocol matches and registers it.
func (t *Table) AddLocalFromProtocol(ctx context.Context, protocol string) (provider.LocalResources, error) {
	factory, err := t.registry.FactoryFor(protocol)
	if err != nil {
		return nil, err
	}

	finalized, err := factory.GetEndpoint(ctx, protocol, true)
	if err != nil {
		return nil, err
	}
	return t.registerLocal(finalized)
}

// FindLocalCompatible returns an existing local endpoint that CanSupport
// remoteString, or terrors.ErrUnsupportedEndpoint.
func (t *Table) FindLocalCompatible(remoteString string) (provider.LocalResources, error) {
	remote, err := endpoint.Parse(remoteString)
	if err != nil {
		return nil, err
	}
	if e, ok := t.findReusableLocal(remote); ok {
		return e.resources, nil
	}
	return nil, fmt.Errorf("%w: no local endpoint compatible with %q", terrors.ErrUnsupportedEndpoint, remoteString)
}

// AddRemote registers a remote endpoint, idempotently (spec.md section 8,
// "Idempotent remote registration"): a repeated call for the same string
// returns the original record rather than creating a second one.
func (t *Table) AddRemote(s string) (provider.Resources, error) {
	if e, ok := t.findRemote(s); ok {
		return e.resources, nil
	}

	id, err := endpoint.Parse(s)
	if err != nil {
		return nil, err
	}
	res, err := t.registry.GetSMBResources(s)
	if err != nil {
		// Not yet known to the registry either: register a bare lookup
		// handle without allocating local resources (spec.md section 4.2,
		// "acquires a shared memory reference without allocating").
		res = &remoteLookup{endpoint: s}
	}

	t.remote = append(t.remote, remoteEntry{str: s, identity: id, resources: res})
	return res, nil
}

// GetCompatibleEndpoint resolves remoteOrProtocol to a finalised local
// endpoint, reusing a compatible local endpoint when one already exists
// (spec.md section 8 scenarios 3 and 4). See DESIGN.md for why this
// resolves the "Unexpected existing endpoint" open question as reuse-or-
// create rather than as a throwing precondition.
func (t *Table) GetCompatibleEndpoint(ctx context.Context, remoteOrProtocol *string) (endpoint.Identity, error) {
	var res provider.LocalResources
	var err error

	if remoteOrProtocol == nil {
		res, err = t.addDefault(ctx)
	} else if endpoint.IsBareProtocol(*remoteOrProtocol) {
		res, err = t.FindLocalCompatible(*remoteOrProtocol)
		if err != nil {
			res, err = t.AddLocalFromProtocol(ctx, *remoteOrProtocol)
		}
	} else {
		res, err = t.AddLocal(ctx, remoteOrProtocol, false)
	}
	if err != nil {
		return endpoint.Identity{}, err
	}

	e, ok := t.findLocal(res.Endpoint())
	if !ok {
		return endpoint.Identity{}, fmt.Errorf("%w: finalized endpoint %q missing from table", terrors.ErrInvariantViolation, res.Endpoint())
	}
	return e.identity, nil
}

func (t *Table) addDefault(ctx context.Context) (provider.LocalResources, error) {
	if t.cached != nil {
		if e, ok := t.findLocal(*t.cached); ok {
			return e.resources, nil
		}
	}

	res, err := t.AddLocalFromProtocol(ctx, t.defaultProtocol)
	if err != nil {
		// Fall back to the first enumerated supported endpoint
		// (spec.md section 4.2).
		supported := t.registry.ListSupportedEndpoints()
		if len(supported) == 0 {
			return nil, err
		}
		first, parseErr := endpoint.Parse(supported[0])
		if parseErr != nil {
			return nil, err
		}
		res, err = t.AddLocalFromProtocol(ctx, first.Protocol)
		if err != nil {
			return nil, err
		}
	}

	s := res.Endpoint()
	t.cached = &s
	return res, nil
}

func (t *Table) createCompatible(ctx context.Context, remoteString string) (provider.LocalResources, error) {
	remote, err := endpoint.Parse(remoteString)
	if err != nil {
		return nil, err
	}
	factory, err := t.registry.FactoryFor(remote.Protocol)
	if err != nil {
		return nil, err
	}
	finalized, err := factory.NewCompatibleEndpoint(ctx, remoteString)
	if err != nil {
		return nil, err
	}
	return t.registerLocal(finalized)
}

func (t *Table) registerLocal(finalized string) (provider.LocalResources, error) {
	if e, ok := t.findLocal(finalized); ok {
		return e.resources, nil
	}

	id, err := endpoint.Parse(finalized)
	if err != nil {
		return nil, err
	}
	if id.MaxMailboxes >= endpoint.MaxMailboxCeiling {
		return nil, fmt.Errorf("%w: maxMailboxes %d is not below ceiling %d", terrors.ErrEndpointCapacityExceeded, id.MaxMailboxes, endpoint.MaxMailboxCeiling)
	}
	res, err := t.registry.CreateSMBResources(finalized)
	if err != nil {
		return nil, err
	}
	id.Local = true
	t.local = append(t.local, localEntry{str: finalized, identity: id, resources: res})
	return res, nil
}

// findReusableLocal returns a local endpoint of the same protocol and
// maxMailboxes as remote, but a different mailbox (spec.md section 4.1's
// CanSupport).
func (t *Table) findReusableLocal(remote endpoint.Identity) (localEntry, bool) {
	for _, e := range t.local {
		if endpoint.CanSupport(e.identity, remote.Format()) {
			return e, true
		}
	}
	return localEntry{}, false
}

func (t *Table) findLocal(s string) (localEntry, bool) {
	for _, e := range t.local {
		if e.str == s {
			return e, true
		}
	}
	return localEntry{}, false
}

// FindRemoteByMailbox returns the endpoint string of the remote entry whose
// parsed identity has the given mailbox number, for a dispatch loop that
// only has a peer mailbox index to go on (transport/mailbox's checkMailboxes
// needs to address a reply back to whichever peer owns an inbound slot).
func (t *Table) FindRemoteByMailbox(mailbox int) (string, bool) {
	for _, e := range t.remote {
		if e.identity.Mailbox == mailbox {
			return e.str, true
		}
	}
	return "", false
}

func (t *Table) findRemote(s string) (remoteEntry, bool) {
	for _, e := range t.remote {
		if e.str == s {
			return e, true
		}
	}
	return remoteEntry{}, false
}

// remoteLookup is the "lookup handle" a remote endpoint owns when the
// registry itself has no resources record yet (spec.md section 3).
type remoteLookup struct {
	endpoint string
}

func (r *remoteLookup) Endpoint() string { return r.endpoint }
