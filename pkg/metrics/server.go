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

package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

// Registerer is implemented by packages that own collectors.
type Registerer func(prometheus.Registerer) error

// Server serves /metrics, the health probes and a JSON view of the sources.
type Server struct {
	server   *http.Server
	registry *prometheus.Registry
	ready    func() error
	sources  func() interface{}
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithReadiness makes /readyz report the result of ready.
func WithReadiness(ready func() error) ServerOption {
	return func(s *Server) { s.ready = ready }
}

// WithSources serves the value returned by list as JSON on /sources.
func WithSources(list func() interface{}) ServerOption {
	return func(s *Server) { s.sources = list }
}

// NewServer creates a server with its own registry holding the Go and
// process collectors plus the collectors of every registerer.
func NewServer(addr string, registerers []Registerer, opts ...ServerOption) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, register := range registerers {
		if err := register(registry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	s := &Server{registry: registry}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/healthz", s.healthz).Methods("GET")
	r.HandleFunc("/readyz", s.readyz).Methods("GET")
	if s.sources != nil {
		r.HandleFunc("/sources", s.listSources).Methods("GET")
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Registry returns the registry backing /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Server) Start() error {
	klog.InfoS("Starting metrics server", "address", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "Failed to start metrics server")
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	klog.Info("Shutting down metrics server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	jsonBytes, err := json.Marshal(s.sources())
	if err != nil {
		http.Error(w, "error in processing source list", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(jsonBytes)
}
