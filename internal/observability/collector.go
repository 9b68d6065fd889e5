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

package observability

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Collector listens for newline-delimited JSON TraceEvents on a Unix
// socket and serves the assembled Timeline over HTTP+JSON, mirroring
// the API shape api.Server registers on a plain http.ServeMux.
type Collector struct {
	socketPath string
	timeline   *Timeline
	log        logrus.FieldLogger

	listener net.Listener
}

// NewCollector builds a Collector backed by timeline, listening for
// trace events on socketPath.
func NewCollector(socketPath string, timeline *Timeline) *Collector {
	return &Collector{
		socketPath: socketPath,
		timeline:   timeline,
		log:        logrus.StandardLogger().WithField("component", "trace-collector"),
	}
}

// ListenAndServe binds the Unix socket (removing any stale socket file
// left by a prior crash) and accepts connections until ctx is canceled.
// Each connection is read as newline-delimited JSON TraceEvents.
func (c *Collector) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(c.socketPath)
	ln, err := net.Listen("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("observability: listen %s: %w", c.socketPath, err)
	}
	c.listener = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("observability: accept: %w", err)
			}
		}
		go c.handleConn(conn)
	}
}

func (c *Collector) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		var ev TraceEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			c.log.WithError(err).Warn("dropping malformed trace event")
			traceEventsDropped.Inc()
			continue
		}
		c.timeline.Record(ev)
		traceEventsReceived.Inc()
	}
}

// RegisterRoutes registers the collector's read API on mux: the three
// endpoints spec.md §4.8 names plus the /metrics Prometheus endpoint
// this expansion adds alongside them.
func (c *Collector) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/traces", c.handleTraces)
	mux.HandleFunc("/api/stats", c.handleStats)
	mux.HandleFunc("/api/health", c.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

func (c *Collector) handleTraces(w http.ResponseWriter, r *http.Request) {
	traces := c.timeline.Recent(20)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(traces)
}

func (c *Collector) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c.timeline.Stats())
}

func (c *Collector) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// ListenAndServeHTTP starts the HTTP read API on addr. It includes the
// same read/write/idle timeouts api.Server.ListenAndServe configures.
func (c *Collector) ListenAndServeHTTP(addr string) error {
	mux := http.NewServeMux()
	c.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	c.log.WithField("addr", addr).Info("trace collector HTTP API listening")
	return httpServer.ListenAndServe()
}
