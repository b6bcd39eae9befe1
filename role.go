// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"fmt"
	"sync/atomic"
)

// Role is the identity a Dock commits to. It is assigned at most once.
type Role int32

const (
	RoleUnset Role = iota
	RoleServer
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleUnset:
		return "Unset"
	case RoleServer:
		return "Server"
	case RoleClient:
		return "Client"
	default:
		return fmt.Sprintf("Role(%d)", int32(r))
	}
}

// Lifecycle owns the single-assignment role and the monotonic request
// counter. It is safe for concurrent use.
type Lifecycle struct {
	role    atomic.Int32
	counter atomic.Uint64
}

// NewLifecycle returns a Lifecycle in RoleUnset with a zero counter.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// BecomeServer moves the lifecycle from RoleUnset to RoleServer.
func (l *Lifecycle) BecomeServer() error {
	return l.become(RoleServer)
}

// BecomeClient moves the lifecycle from RoleUnset to RoleClient.
func (l *Lifecycle) BecomeClient() error {
	return l.become(RoleClient)
}

func (l *Lifecycle) become(r Role) error {
	if l.role.CompareAndSwap(int32(RoleUnset), int32(r)) {
		return nil
	}
	return fmt.Errorf("%w: cannot become %s, already %s", ErrRoleAlreadySet, r, l.Role())
}

// Role returns the current role.
func (l *Lifecycle) Role() Role {
	return Role(l.role.Load())
}

// Next increments the request counter and returns the new value.
func (l *Lifecycle) Next() uint64 {
	return l.counter.Add(1)
}

// Count returns the number of requests processed or sent so far.
func (l *Lifecycle) Count() uint64 {
	return l.counter.Load()
}
