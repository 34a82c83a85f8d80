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

package mailboxlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockForIsStableAndDistinct(t *testing.T) {
	r := New()

	a1 := r.LockFor("smb:peer-a;4096.0.16")
	a2 := r.LockFor("smb:peer-a;4096.0.16")
	b := r.LockFor("smb:peer-b;4096.1.16")

	assert.Same(t, a1, a2, "same peer string must return the same mutex")
	assert.NotSame(t, a1, b, "distinct peers should (with overwhelming probability) get distinct mutexes")
}

func TestLockForSerializes(t *testing.T) {
	r := New()
	m := r.LockFor("smb:peer;4096.0.16")

	m.Lock()
	locked := make(chan struct{})
	go func() {
		r.LockFor("smb:peer;4096.0.16").Lock()
		close(locked)
	}()

	select {
	case <-locked:
		t.Fatal("second lock acquired while first still held")
	default:
	}
	m.Unlock()
	<-locked
}

func TestCloseResetsRegistry(t *testing.T) {
	r := New()
	before := r.LockFor("smb:peer;4096.0.16")
	r.Close()
	after := r.LockFor("smb:peer;4096.0.16")
	assert.NotSame(t, before, after)
}
