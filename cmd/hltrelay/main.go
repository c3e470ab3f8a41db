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
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/hltonline/eventplane/pkg/constants"
	"github.com/hltonline/eventplane/pkg/discovery"
	"github.com/hltonline/eventplane/pkg/homer"
	"github.com/hltonline/eventplane/pkg/metrics"
	"github.com/hltonline/eventplane/pkg/runinfo"
	"github.com/hltonline/eventplane/pkg/sink"
	"github.com/hltonline/eventplane/pkg/utils"
)

var (
	realmConfig     string
	detector        string
	sinkOptions     string
	metricsAddr     string
	redisAddr       string
	runNumberKey    string
	runNumber       int
	refreshInterval time.Duration
	dialTimeout     time.Duration
	readTimeout     time.Duration
)

func main() {
	flag.StringVar(&realmConfig, "realm-config", utils.LoadEnv(constants.EnvRealmConfig, ""),
		"Path to a YAML realm configuration. The built-in realms are used when empty.")
	flag.StringVar(&detector, "detector", utils.LoadEnv(constants.EnvDetector, constants.DefaultDetector),
		"Data origin to relay, or ALL.")
	flag.StringVar(&sinkOptions, "sink-options", utils.LoadEnv(constants.EnvSinkOptions, constants.DefaultSinkOptions),
		"Sink option string, e.g. 'out=PUB@tcp://*:60201 pushback-period=2'.")
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to.")
	flag.StringVar(&redisAddr, "redis-addr", utils.LoadEnv(constants.EnvRedisAddr, ""),
		"Redis address for source snapshots and the run number. Disabled when empty.")
	flag.StringVar(&runNumberKey, "run-number-key", utils.LoadEnv(constants.EnvRunNumberKey, constants.DefaultRunNumberKey),
		"Redis key holding the current run number.")
	flag.IntVar(&runNumber, "run-number", 0, "Fixed run number used when Redis is disabled.")
	flag.DurationVar(&refreshInterval, "refresh-interval",
		utils.LoadEnvDuration(constants.EnvRefreshInterval, constants.DefaultRefreshInterval),
		"How often the proxy is asked for the source list.")
	flag.DurationVar(&dialTimeout, "dial-timeout", constants.DefaultDialTimeout, "Timeout for opening proxy and source connections.")
	flag.DurationVar(&readTimeout, "read-timeout", constants.DefaultReadTimeout, "Timeout for proxy responses and events.")
	klog.InitFlags(flag.CommandLine)
	flag.Parse()

	if err := serve(); err != nil {
		klog.ErrorS(err, "Relay stopped")
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func serve() error {
	realms := discovery.DefaultRealmConfig()
	if realmConfig != "" {
		var err error
		if realms, err = discovery.LoadRealmConfig(realmConfig); err != nil {
			return fmt.Errorf("failed to load realm config: %w", err)
		}
	}

	redisClient, err := utils.GetRedisClient(redisAddr)
	if err != nil {
		return err
	}

	var registryOpts []discovery.RegistryOption
	var runInfo runinfo.Provider = runinfo.Static(runNumber)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				klog.Warningf("Error closing Redis client: %v", err)
			}
		}()
		registryOpts = append(registryOpts, discovery.WithSnapshotStore(
			discovery.NewRedisSnapshotStore(redisClient, constants.DefaultSnapshotKey, constants.DefaultSnapshotTTL)))
		runInfo = runinfo.NewRedisProvider(redisClient, runNumberKey)
	}

	proxy := discovery.NewProxyClient(realms, discovery.WithTimeouts(dialTimeout, readTimeout))
	registry := discovery.NewRegistry(proxy, registryOpts...)
	manager := homer.NewManager(registry, &homer.Config{DialTimeout: dialTimeout, ReadTimeout: readTimeout})

	out := sink.New(sink.WithRunInfo(runInfo))
	if err := out.Init(sinkOptions); err != nil {
		return fmt.Errorf("failed to initialize sink: %w", err)
	}
	defer func() {
		if err := out.Shutdown(); err != nil {
			klog.Warningf("Error closing sink: %v", err)
		}
	}()

	metricsServer, err := metrics.NewServer(metricsAddr,
		[]metrics.Registerer{discovery.RegisterMetrics, homer.RegisterMetrics, sink.RegisterMetrics},
		metrics.WithReadiness(func() error {
			if !manager.IsConnected() {
				return errors.New("not connected to any source")
			}
			return nil
		}),
		metrics.WithSources(func() interface{} { return registry.Sources() }),
	)
	if err != nil {
		return err
	}
	if err := metricsServer.Start(); err != nil {
		return err
	}
	defer func() { _ = metricsServer.Stop() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		klog.Info("Shutting down, closing source connections")
		// Unblocks a pending NextEvent.
		manager.Disconnect()
	}()

	r := &relay{
		registry:        registry,
		events:          managerSource{manager},
		sink:            out,
		scope:           homer.DetectorScope(detector),
		refreshInterval: refreshInterval,
		retryDelay:      dialTimeout,
		now:             time.Now,
	}
	klog.InfoS("Starting relay", "detector", detector, "sink", sinkOptions)
	defer manager.Disconnect()
	return r.run(ctx)
}
