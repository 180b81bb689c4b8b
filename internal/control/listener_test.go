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

package control

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestListenCreatesRestrictedSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "lumend.sock")

	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("socket was not created: %v", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		t.Errorf("%s is not a socket", path)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket permissions = %o, want 0600", perm)
	}

	dirInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0700 {
		t.Errorf("socket directory permissions = %o, want 0700", perm)
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lumend.sock")

	// Leave a socket file behind the way a crashed daemon would.
	stale, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	stale.(*net.UnixListener).SetUnlinkOnClose(false)
	if err := stale.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stale socket missing before Listen: %v", err)
	}

	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen did not replace the stale socket: %v", err)
	}
	defer ln.Close()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("new socket does not accept connections: %v", err)
	}
	conn.Close()
}

func TestListenRejectsUncreatableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	// The parent "directory" is a regular file, so MkdirAll must fail.
	if _, err := Listen(filepath.Join(blocker, "lumend.sock")); err == nil {
		t.Fatal("expected an error for an uncreatable socket directory")
	}
}
