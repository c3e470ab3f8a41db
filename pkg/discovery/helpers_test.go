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
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeProxy answers every connection with a canned response.
type fakeProxy struct {
	listener net.Listener
	response string

	mu       sync.Mutex
	requests []string
}

func newFakeProxy(t *testing.T, response string) *fakeProxy {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := &fakeProxy{listener: l, response: response}
	go p.serve()
	t.Cleanup(func() { _ = l.Close() })
	return p
}

func (p *fakeProxy) serve() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		go p.handle(conn)
	}
}

func (p *fakeProxy) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	var req strings.Builder
	for {
		line, err := r.ReadString('\n')
		req.WriteString(line)
		if err != nil || strings.Contains(line, "</methodCall>") {
			break
		}
	}
	p.mu.Lock()
	p.requests = append(p.requests, req.String())
	p.mu.Unlock()
	_, _ = conn.Write([]byte(p.response))
}

func (p *fakeProxy) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

func (p *fakeProxy) Port() int {
	return p.listener.Addr().(*net.TCPAddr).Port
}

// routingDialer resolves proxy node names to the fake proxy and refuses the
// nodes listed in down.
func routingDialer(target string, down ...string) DialFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(address)
		if err != nil {
			return nil, err
		}
		for _, d := range down {
			if d == host {
				return nil, fmt.Errorf("dial %s: connection refused", address)
			}
		}
		var dialer net.Dialer
		return dialer.DialContext(ctx, network, net.JoinHostPort(target, port))
	}
}

func testRealmConfig(port int) *RealmConfig {
	return &RealmConfig{
		ProxyPort:        port,
		HostnameOverride: OverrideOutsideHome,
		Realms: []Realm{
			{Name: "HOME", Prefixes: []string{"10.162."}, Primary: "home-a.test", Secondary: "home-b.test", Home: true},
			{Name: "CAMPUS", Primary: "campus-a.test", Secondary: "campus-b.test"},
		},
	}
}

func rpcResponse(inner string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(inner))
	return "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/xml\r\n" +
		"\r\n" +
		"<?xml version=\"1.0\"?>\r\n" +
		"<methodResponse>\r\n" +
		"<params><param><value><string>" + escaped.String() + "</string></value></param></params>\r\n" +
		"</methodResponse>\r\n"
}

func serviceXML(address, port, origin, dataType, spec string) string {
	var b strings.Builder
	b.WriteString("<service>")
	if address != "" {
		b.WriteString("<address>" + address + "</address>")
	}
	if port != "" {
		b.WriteString("<port>" + port + "</port>")
	}
	if origin != "" {
		b.WriteString("<dataorigin>" + origin + "</dataorigin>")
	}
	if dataType != "" {
		b.WriteString("<datatype>" + dataType + "</datatype>")
	}
	if spec != "" {
		b.WriteString("<dataspecification>" + spec + "</dataspecification>")
	}
	b.WriteString("</service>")
	return b.String()
}

func servicesXML(services ...string) string {
	return "<services>" + strings.Join(services, "") + "</services>"
}

// fakeRedis implements RedisKV over a map.
type fakeRedis struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if f.setErr != nil {
		cmd.SetErr(f.setErr)
		return cmd
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

// staticDiscoverer returns canned results in order.
type staticDiscoverer struct {
	results []*Result
	errs    []error
	calls   int
}

func (s *staticDiscoverer) Discover(ctx context.Context) (*Result, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.results[i], err
}
