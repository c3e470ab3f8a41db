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

package main

import (
	"context"
	"errors"
	"time"

	"k8s.io/klog/v2"

	"github.com/hltonline/eventplane/pkg/discovery"
	"github.com/hltonline/eventplane/pkg/homer"
	"github.com/hltonline/eventplane/pkg/sink"
	"github.com/hltonline/eventplane/pkg/types"
)

type sourceRegistry interface {
	Refresh(ctx context.Context) (*discovery.Result, error)
	SelectMatching(match func(discovery.SourceDescriptor) bool) int
}

type eventSource interface {
	SyncSelection(ctx context.Context, scope homer.DetectorScope) error
	Next() (*types.Event, error)
}

// managerSource hands the events of a homer.Manager to the sink.
type managerSource struct {
	*homer.Manager
}

func (m managerSource) Next() (*types.Event, error) {
	handle, err := m.NextEvent()
	if err != nil {
		return nil, err
	}
	return handle.Event(), nil
}

// relay drives one discovery, connection and sink cycle per event.
type relay struct {
	registry        sourceRegistry
	events          eventSource
	sink            sink.Component
	scope           homer.DetectorScope
	refreshInterval time.Duration
	retryDelay      time.Duration
	now             func() time.Time

	lastRefresh time.Time
}

// run loops until ctx is cancelled. Cancelling ctx alone does not interrupt
// a blocked read; the caller disconnects the manager for that.
func (r *relay) run(ctx context.Context) error {
	for ctx.Err() == nil {
		if r.lastRefresh.IsZero() || r.now().Sub(r.lastRefresh) >= r.refreshInterval {
			r.refresh(ctx)
		}

		if err := r.events.SyncSelection(ctx, r.scope); err != nil {
			klog.Warningf("No readable sources for %s: %v", r.scope, err)
			r.retry(ctx)
			continue
		}

		ev, err := r.events.Next()
		switch {
		case err == nil:
		case homer.IsTemporaryError(err):
			klog.V(4).Infof("No event: %v", err)
			continue
		case errors.Is(err, homer.ErrClosed):
			if ctx.Err() != nil {
				return nil
			}
			klog.Warningf("Lost sources: %v", err)
			r.retry(ctx)
			continue
		default:
			return err
		}
		if ev == nil {
			continue
		}

		if _, err := r.sink.ProcessEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (r *relay) refresh(ctx context.Context) {
	r.lastRefresh = r.now()
	result, err := r.registry.Refresh(ctx)
	if err != nil {
		klog.Errorf("Source discovery failed: %v", err)
		return
	}
	selected := r.registry.SelectMatching(func(s discovery.SourceDescriptor) bool {
		return r.scope.Matches(s.DataOrigin)
	})
	klog.InfoS("Sources refreshed", "realm", result.Realm, "proxy", result.Proxy, "status", result.Status,
		"sources", len(result.Sources), "selected", selected, "skipped", result.Skipped)
}

// retry waits before the next attempt and forces a rediscovery.
func (r *relay) retry(ctx context.Context) {
	r.lastRefresh = time.Time{}
	select {
	case <-ctx.Done():
	case <-time.After(r.retryDelay):
	}
}
