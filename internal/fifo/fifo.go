// Package fifo wraps the local named-pipe (FIFO) primitives the session
// layer is built on: creation and the two blocking opens a client/server
// pair must perform in a fixed order (spec.md §5's open-order rule).
// Style — direct syscalls, explicit errno handling — is grounded on the
// teacher's raw filesystem reads in ws/cgroup.go.
package fifo

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Ensure creates the FIFO at path with perm if it does not already
// exist. A pre-existing FIFO left over from a previous run is reused.
func Ensure(path string, perm os.FileMode) error {
	if err := syscall.Mkfifo(path, uint32(perm)); err != nil {
		if errors.Is(err, syscall.EEXIST) {
			return nil
		}
		return fmt.Errorf("fifo: mkfifo %s: %w", path, err)
	}
	return nil
}

// OpenReader opens path for reading. This blocks until a writer also has
// the pipe open — callers must respect the open-order rule documented
// on the session package.
func OpenReader(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("fifo: open %s for read: %w", path, err)
	}
	return f, nil
}

// OpenWriter opens path for writing. This blocks until a reader also has
// the pipe open.
func OpenWriter(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("fifo: open %s for write: %w", path, err)
	}
	return f, nil
}

// Remove deletes the FIFO at path, ignoring a not-exist error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fifo: remove %s: %w", path, err)
	}
	return nil
}
