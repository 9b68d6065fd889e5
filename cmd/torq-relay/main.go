// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package main is the entry point for the Torq relay: one Unix-domain
// listener per relay domain (market_data, signals, execution, system),
// each running its own validator and broadcaster per spec.md §4.4.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"torq/internal/relay"
	"torq/internal/validator"
	"torq/internal/wire"
)

var domainByName = map[string]wire.RelayDomain{
	"market_data": wire.DomainMarketData,
	"signals":     wire.DomainSignal,
	"execution":   wire.DomainExecution,
	"system":      wire.DomainSystem,
}

func main() {
	configPath := flag.String("config", "", "Path to the relay TOML config; empty uses the built-in defaults from spec.md §6")
	flag.Parse()

	cfg := relay.DefaultConfig()
	if *configPath != "" {
		loaded, err := relay.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("torq-relay: %v", err)
		}
		cfg = loaded
	}

	registry := wire.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	for name, domainCfg := range cfg.Domains {
		domain, ok := domainByName[name]
		if !ok {
			log.Fatalf("torq-relay: unknown domain %q in config", name)
		}
		policy := validator.Policy{
			Domain:             domain,
			Checksum:           domainCfg.Checksum,
			Strict:             domainCfg.Strict,
			Audit:              domainCfg.Audit,
			MaxMessageSize:     domainCfg.MaxMessageSize,
			MaxSequenceGap:     domainCfg.MaxSequenceGap,
			SequenceWindowSize: domainCfg.SequenceWindowSize,
		}
		overrides := map[wire.RelayDomain]validator.Policy{domain: policy}
		validator.ApplyEnvOverrides(overrides)
		policy = overrides[domain]
		v := validator.New(policy, registry, validator.WithLogger(logrus.StandardLogger().WithField("domain", name)))
		srv := relay.NewServer(domain, domainCfg.SocketPath, v, registry, domainCfg.BroadcastCapacity, nil)

		wg.Add(1)
		go func(name string, srv *relay.Server) {
			defer wg.Done()
			fmt.Printf("torq-relay: %s listening on %s\n", name, domainCfg.SocketPath)
			if err := srv.ListenAndServe(ctx); err != nil {
				logrus.WithError(err).WithField("domain", name).Error("relay server stopped")
			}
		}(name, srv)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\ntorq-relay: shutting down...")
	cancel()
	wg.Wait()
	fmt.Println("torq-relay: stopped.")
}
