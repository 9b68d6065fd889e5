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

// Package main is the entry point for the Torq pool-metadata cache
// service (C7): loads the durable snapshot+journal, runs the bounded
// discovery worker pool against an Ethereum JSON-RPC endpoint, and
// periodically compacts the journal back into a fresh snapshot.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"torq/internal/poolcache"
)

func main() {
	rpcURL := flag.String("rpc_url", "", "Ethereum-compatible JSON-RPC endpoint used for pool discovery")
	chainID := flag.Uint64("chain_id", 137, "Chain ID recorded in the snapshot header (default: Polygon)")
	venue := flag.Uint64("venue", 4, "Venue identifier stamped on discovered pools")
	snapshotPath := flag.String("snapshot", "/var/lib/torq/pools.snap", "Durable pool-metadata snapshot path")
	journalPath := flag.String("journal", "/var/lib/torq/pools.journal", "Append-only pool-metadata journal path")
	compactInterval := flag.Duration("compact_interval", 5*time.Minute, "How often to compact the journal into a fresh snapshot")
	workers := flag.Int("workers", 2, "Discovery worker pool size")
	discoveryBuffer := flag.Int("discovery_buffer", 256, "Bounded discovery channel capacity")
	discoveryTimeout := flag.Duration("discovery_timeout", 5*time.Second, "Per-call eth_call timeout")
	flag.Parse()

	if *rpcURL == "" {
		log.Fatal("torq-poolcached: -rpc_url is required")
	}

	client, err := ethclient.Dial(*rpcURL)
	if err != nil {
		log.Fatalf("torq-poolcached: dial %s: %v", *rpcURL, err)
	}
	discoverer := poolcache.NewEthDiscoverer(client, uint16(*venue), *chainID, *discoveryTimeout)

	journal, err := poolcache.OpenJournal(*journalPath)
	if err != nil {
		log.Fatalf("torq-poolcached: open journal: %v", err)
	}
	defer journal.Close()

	cache := poolcache.NewCache(poolcache.Options{
		Workers:         *workers,
		DiscoveryBuffer: *discoveryBuffer,
		Discoverer:      discoverer,
		Journal:         journal,
	})

	if err := poolcache.LoadWithRecovery(cache, *snapshotPath, *journalPath); err != nil {
		log.Fatalf("torq-poolcached: load: %v", err)
	}
	fmt.Printf("torq-poolcached: loaded %d pools from %s\n", cache.Len(), *snapshotPath)

	stop := make(chan struct{})
	go compactLoop(cache, *snapshotPath, *journalPath, *chainID, *compactInterval, stop)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\ntorq-poolcached: shutting down, compacting final snapshot...")
	close(stop)
	if err := compactOnce(cache, *snapshotPath, *chainID); err != nil {
		log.Printf("torq-poolcached: final compaction failed: %v", err)
	}
	fmt.Println("torq-poolcached: stopped.")
}

// compactLoop periodically rewrites the snapshot from the in-memory
// cache, per spec.md §4.7 step 3's "periodically compact into a
// snapshot". The journal file is left as is, and LoadWithRecovery
// replays every entry in it on the next start.
func compactLoop(cache *poolcache.Cache, snapshotPath, journalPath string, chainID uint64, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := compactOnce(cache, snapshotPath, chainID); err != nil {
				log.Printf("torq-poolcached: compaction failed: %v", err)
			}
		case <-stop:
			return
		}
	}
}

func compactOnce(cache *poolcache.Cache, snapshotPath string, chainID uint64) error {
	snap := poolcache.Snapshot{
		ChainID:         chainID,
		LastUpdatedSecs: uint64(time.Now().Unix()),
		Pools:           cache.Snapshot(),
	}
	return poolcache.WriteSnapshotFile(snapshotPath, snap)
}
