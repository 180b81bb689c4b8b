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

package client

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// Transport is an HTTP transport that dials the daemon's Unix socket
// regardless of the request URL host.
type Transport struct {
	// SocketPath is the Unix socket path of the daemon.
	SocketPath string

	once  sync.Once
	inner *http.Transport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.once.Do(func() {
		t.inner = &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: true,
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", t.SocketPath)
			},
		}
	})
	return t.inner.RoundTrip(req)
}

// DefaultTransport creates a transport using the default socket path.
func DefaultTransport() (*Transport, error) {
	socketPath, err := DefaultSocketPath()
	if err != nil {
		return nil, err
	}

	return NewUnixTransport(socketPath), nil
}

// NewUnixTransport creates a transport for a Unix socket.
func NewUnixTransport(socketPath string) *Transport {
	return &Transport{
		SocketPath: socketPath,
	}
}
