// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package gate

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// keyedMutex serializes operations per identity so a register and a login
// for the same player cannot interleave. Entries are reference counted and
// removed once the last holder releases.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[ulid.ULID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[ulid.ULID]*lockEntry)}
}

// lock acquires the mutex for id and returns its release function.
func (k *keyedMutex) lock(id ulid.ULID) func() {
	k.mu.Lock()
	entry, ok := k.locks[id]
	if !ok {
		entry = &lockEntry{}
		k.locks[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
