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

// Package main is the entry point for the Torq trace collector (C8):
// it receives newline-delimited JSON trace events over a Unix socket,
// assembles per-trace timelines, and serves them over HTTP+JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"torq/internal/observability"
)

func main() {
	socketPath := flag.String("socket", "/tmp/torq/trace-collector.sock", "Unix socket the collector listens on for newline-delimited JSON trace events")
	httpAddr := flag.String("http_addr", ":9100", "HTTP address for the /api/traces, /api/stats, /api/health, and /metrics read API")
	ringCapacity := flag.Int("ring_capacity", 0, "Maximum number of completed traces retained in memory (0 uses the documented default)")
	flag.Parse()

	timeline := observability.NewTimeline(*ringCapacity)
	collector := observability.NewCollector(*socketPath, timeline)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := collector.ListenAndServe(ctx); err != nil {
			log.Printf("torq-trace-collector: socket listener stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	collector.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:         *httpAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("torq-trace-collector: HTTP API listening on %s, socket %s\n", *httpAddr, *socketPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("torq-trace-collector: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\ntorq-trace-collector: shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("torq-trace-collector: shutdown: %v", err)
	}
	fmt.Println("torq-trace-collector: stopped.")
}
