// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpk

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Store appends telemetry records to the cache files of a run.
//
// Each append opens the cache file, takes an exclusive advisory lock,
// writes exactly one record and closes the file, so that pollers always
// observe whole records (modulo a short tail they ignore).
// Readers never take the lock.
type Store struct {
	root string
}

// NewStore returns a store writing cache files rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the root path of the cache files.
func (s *Store) Root() string { return s.root }

// Append writes the first RecordLen bytes of raw to the cache file of kind k.
func (s *Store) Append(k Kind, raw []byte) error {
	n := k.RecordLen()
	if len(raw) < n {
		return fmt.Errorf("gpk: short %v record (got=%d, want=%d)", k, len(raw), n)
	}

	fname := Filename(s.root, k)
	f, err := os.OpenFile(fname, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("gpk: could not open cache file %q: %w", fname, err)
	}
	defer f.Close()

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		return fmt.Errorf("gpk: could not lock cache file %q: %w", fname, err)
	}

	_, err = f.Write(raw[:n])
	if err != nil {
		return fmt.Errorf("gpk: could not write %v record to %q: %w", k, fname, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("gpk: could not close cache file %q: %w", fname, err)
	}

	return nil
}
