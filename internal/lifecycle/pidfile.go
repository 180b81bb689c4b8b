// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lifecycle manages the daemon's PID file.
//
// The PID file doubles as a single-instance lock: the daemon holds an
// exclusive flock on it for its whole lifetime, so a second instance
// fails fast, while a file left behind by a crash is simply taken over
// because its lock died with the owner.
package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrPIDFileLocked is returned when another process holds the PID file lock.
	ErrPIDFileLocked = errors.New("PID file is locked by another process")

	// ErrInvalidPID is returned when the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid PID in file")

	// ErrUnsafeDirectory is returned when the PID file parent is world-writable.
	ErrUnsafeDirectory = errors.New("PID file directory is world-writable")
)

// PIDFile owns the daemon's PID file and the flock that guards it.
type PIDFile struct {
	path string
	lock *os.File
}

// NewPIDFile creates a PID file handle for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{
		path: path,
	}
}

// Path returns the PID file location.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire writes the given PID to the file and holds an exclusive lock
// on it. A stale file from a crashed daemon is taken over; a file whose
// lock is still held means another instance is running, reported as
// ErrPIDFileLocked.
func (p *PIDFile) Acquire(pid int) error {
	parentDir := filepath.Dir(p.path)
	if err := verifyDirectorySafety(parentDir); err != nil {
		return fmt.Errorf("unsafe PID file location: %w", err)
	}

	if err := os.MkdirAll(parentDir, 0700); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	// O_NOFOLLOW keeps a symlink planted at the path from redirecting
	// the write. The flock decides between a live owner and a stale
	// file, so O_EXCL is not needed.
	f, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|syscall.O_NOFOLLOW, 0600)
	if err != nil {
		return fmt.Errorf("failed to open PID file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			if owner, rerr := p.Read(); rerr == nil {
				return fmt.Errorf("%w (pid %d)", ErrPIDFileLocked, owner)
			}
			return ErrPIDFileLocked
		}
		return fmt.Errorf("failed to lock PID file: %w", err)
	}

	// Lock held: any previous owner is gone. Replace the content.
	if err := f.Truncate(0); err != nil {
		f.Close()
		return fmt.Errorf("failed to truncate PID file: %w", err)
	}
	if _, err := f.WriteAt([]byte(fmt.Sprintf("%d\n", pid)), 0); err != nil {
		f.Close()
		return fmt.Errorf("failed to write PID: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync PID file: %w", err)
	}

	// Keep file open to maintain lock
	p.lock = f
	return nil
}

// Read reads the PID from the file.
// Returns ErrInvalidPID if the file contains non-numeric data.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPID, pidStr)
	}

	if pid <= 0 {
		return 0, fmt.Errorf("%w: PID must be positive, got %d", ErrInvalidPID, pid)
	}

	return pid, nil
}

// Release deletes the PID file and releases the lock.
func (p *PIDFile) Release() error {
	if p.lock != nil {
		syscall.Flock(int(p.lock.Fd()), syscall.LOCK_UN)
		p.lock.Close()
		p.lock = nil
	}

	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	return nil
}

// Exists returns true if the PID file exists.
func (p *PIDFile) Exists() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

// verifyDirectorySafety checks that the directory is not world-writable.
// A world-writable parent would let anyone swap the file for a symlink
// between runs.
func verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		// Directory doesn't exist yet - that's fine, we'll create it
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	mode := info.Mode()
	if mode&0002 != 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrUnsafeDirectory, dir, mode&os.ModePerm)
	}

	return nil
}
