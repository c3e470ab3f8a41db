// Copyright 2025 The Eventplane Authors
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

package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/hltonline/eventplane/pkg/constants"
)

const (
	serviceListMethod  = "getTcpDumpServices"
	envelopeStart      = "<?xml"
	envelopeTerminator = "</methodResponse>"

	defaultMaxResponseLines = 100000
	defaultMaxResponseBytes = 16 << 20
)

// Status distinguishes successful discovery outcomes.
type Status int

const (
	// StatusOK means at least one source was discovered.
	StatusOK Status = iota
	// StatusNoActiveServices means the proxy answered with an empty list.
	StatusNoActiveServices
	// StatusSnapshot means the list was restored from the snapshot store
	// because the proxy was unreachable.
	StatusSnapshot
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoActiveServices:
		return "no-active-services"
	case StatusSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Result is the outcome of one discovery.
type Result struct {
	Realm   string
	Proxy   string
	Status  Status
	Sources []SourceDescriptor
	// Skipped counts service entries dropped for being incomplete.
	Skipped int
}

// Discoverer produces the current list of sources.
type Discoverer interface {
	Discover(ctx context.Context) (*Result, error)
}

// DialFunc opens a byte stream to a proxy node.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ProxyClient queries the realm proxy for the active data sources.
type ProxyClient struct {
	config       *RealmConfig
	localAddress func() (net.IP, error)
	dial         DialFunc
	dialTimeout  time.Duration
	readTimeout  time.Duration
	maxLines     int
	maxBytes     int
}

// ProxyOption customizes a ProxyClient.
type ProxyOption func(*ProxyClient)

// WithLocalAddress pins the address used to identify the realm.
func WithLocalAddress(ip net.IP) ProxyOption {
	return func(c *ProxyClient) {
		c.localAddress = func() (net.IP, error) { return ip, nil }
	}
}

// WithDialer replaces the network dialer.
func WithDialer(dial DialFunc) ProxyOption {
	return func(c *ProxyClient) { c.dial = dial }
}

// WithTimeouts sets the per-node dial timeout and the overall read timeout.
func WithTimeouts(dial, read time.Duration) ProxyOption {
	return func(c *ProxyClient) {
		c.dialTimeout = dial
		c.readTimeout = read
	}
}

// WithResponseLimits bounds the number of lines and bytes read from the proxy.
func WithResponseLimits(lines, bytes int) ProxyOption {
	return func(c *ProxyClient) {
		c.maxLines = lines
		c.maxBytes = bytes
	}
}

// NewProxyClient creates a client for the given realms.
func NewProxyClient(config *RealmConfig, opts ...ProxyOption) *ProxyClient {
	dialer := &net.Dialer{}
	c := &ProxyClient{
		config:       config,
		localAddress: LocalAddress,
		dial:         dialer.DialContext,
		dialTimeout:  constants.DefaultDialTimeout,
		readTimeout:  constants.DefaultReadTimeout,
		maxLines:     defaultMaxResponseLines,
		maxBytes:     defaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover asks the proxy of the local realm for its service list.
func (c *ProxyClient) Discover(ctx context.Context) (*Result, error) {
	addr, err := c.localAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to identify realm: %w", err)
	}
	realm := c.config.IdentifyRealm(addr)
	klog.V(4).Infof("Local address %s is in realm %s", addr, realm.Name)

	conn, node, err := c.connect(ctx, realm)
	if err != nil {
		recordDiscovery(realm.Name, "unreachable")
		return nil, err
	}
	defer conn.Close()

	raw, err := c.exchange(ctx, conn, node)
	if err != nil {
		recordDiscovery(realm.Name, "malformed")
		return nil, err
	}

	entries, err := parseResponse(raw)
	if err != nil {
		recordDiscovery(realm.Name, "malformed")
		return nil, err
	}

	result := &Result{Realm: realm.Name, Proxy: node}
	override := ""
	if c.config.overrideHostname(realm) {
		override = node
	}
	for i, entry := range entries {
		desc, err := entry.toDescriptor(override)
		if err != nil {
			klog.Errorf("Skipping service %d from %s: %v", i, node, err)
			result.Skipped++
			continue
		}
		klog.V(4).Infof("New source added: %s", desc)
		result.Sources = append(result.Sources, desc)
	}

	if len(result.Sources) == 0 {
		klog.Infof("No services active (%d incomplete entries skipped)", result.Skipped)
		result.Status = StatusNoActiveServices
	}
	recordDiscovery(realm.Name, result.Status.String())
	return result, nil
}

// connect tries the primary node and then, once, the secondary node.
func (c *ProxyClient) connect(ctx context.Context, realm Realm) (net.Conn, string, error) {
	port := strconv.Itoa(c.config.ProxyPort)

	conn, err := c.dialNode(ctx, net.JoinHostPort(realm.Primary, port))
	if err == nil {
		return conn, realm.Primary, nil
	}
	klog.Warningf("Failed to connect to %s:%s, trying %s:%s now: %v", realm.Primary, port, realm.Secondary, port, err)

	conn, err2 := c.dialNode(ctx, net.JoinHostPort(realm.Secondary, port))
	if err2 == nil {
		return conn, realm.Secondary, nil
	}
	klog.Errorf("Failed to connect to %s:%s and %s:%s", realm.Primary, port, realm.Secondary, port)
	return nil, "", fmt.Errorf("%w: realm %s: %v; %v", ErrUnreachable, realm.Name, err, err2)
}

func (c *ProxyClient) dialNode(ctx context.Context, address string) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()
	return c.dial(dialCtx, "tcp", address)
}

// serviceListRequest is the XML-RPC call sent over the raw stream.
func serviceListRequest(host string) string {
	body := "<methodCall><methodName>" + serviceListMethod + "</methodName></methodCall>"
	return "PUT / HTTP/1.1\r\n" +
		"User-Agent: eventplane\r\n" +
		"Host: " + host + "\r\n" +
		"Accept: */*\r\n" +
		"Content-type: text/xml\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"\r\n" + body + "\r\n"
}

// exchange writes the request and collects the envelope lines.
func (c *ProxyClient) exchange(ctx context.Context, conn net.Conn, node string) ([]byte, error) {
	deadline := time.Now().Add(c.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := io.WriteString(conn, serviceListRequest(node)); err != nil {
		return nil, fmt.Errorf("%w: sending request to %s: %v", ErrUnreachable, node, err)
	}
	return readEnvelope(bufio.NewReader(conn), c.maxLines, c.maxBytes)
}

// readEnvelope reads lines until the terminator. The first line must be an
// HTTP status line or the envelope start; lines before the envelope start
// (HTTP headers) are discarded.
func readEnvelope(r *bufio.Reader, maxLines, maxBytes int) ([]byte, error) {
	var (
		envelope   strings.Builder
		inEnvelope bool
		total      int
	)

	for n := 0; n < maxLines; n++ {
		line, err := r.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return nil, fmt.Errorf("%w: stream ended before %s: %v", ErrMalformed, envelopeTerminator, err)
		}
		total += len(line)
		if total > maxBytes {
			return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrMalformed, maxBytes)
		}

		line = strings.TrimRight(line, "\r\n")
		if n == 0 && !strings.HasPrefix(line, "HTTP/") && !strings.HasPrefix(line, envelopeStart) {
			return nil, fmt.Errorf("%w: unexpected first line %q", ErrMalformed, truncate(line, 64))
		}
		if strings.HasPrefix(line, envelopeStart) {
			inEnvelope = true
		}
		if inEnvelope {
			envelope.WriteString(line)
			envelope.WriteByte('\n')
		}
		if strings.HasSuffix(strings.TrimSpace(line), envelopeTerminator) {
			if !inEnvelope {
				return nil, fmt.Errorf("%w: terminator without envelope", ErrMalformed)
			}
			return []byte(envelope.String()), nil
		}
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: stream ended before %s", ErrMalformed, envelopeTerminator)
		}
	}
	return nil, fmt.Errorf("%w: no %s within %d lines", ErrMalformed, envelopeTerminator, maxLines)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
