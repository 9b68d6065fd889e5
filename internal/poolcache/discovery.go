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

package poolcache

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"torq/internal/wire"
)

// ethereumCallMsg builds the eth_call message for a parameterless method
// invocation (method selector only, no ABI-encoded arguments).
func ethereumCallMsg(to ethcommon.Address, selector []byte) ethereum.CallMsg {
	return ethereum.CallMsg{To: &to, Data: append([]byte(nil), selector...)}
}

// Well-known 4-byte selectors for the read-only calls discovery makes.
// These are the standard Solidity function selectors (first 4 bytes of
// keccak256("token0()") etc.) shared across every ERC20/Uniswap-V2/V3
// style contract; hardcoding them avoids pulling in an ABI-reflection
// dependency for four fixed, parameterless calls.
var (
	selectorToken0   = []byte{0x0d, 0xfe, 0x16, 0x81} // token0()
	selectorToken1   = []byte{0xd2, 0x12, 0x20, 0xa7} // token1()
	selectorDecimals = []byte{0x31, 0x3c, 0xe5, 0x67} // decimals()
	selectorFee      = []byte{0xdd, 0xca, 0x3f, 0x43} // fee() - present only on V3-style pools
)

type discoveryRequest struct {
	addr ethcommon.Address
	resp chan discoveryResult
}

type discoveryResult struct {
	info wire.PoolInfoTLV
	err  error
}

// Discoverer resolves a pool's metadata via on-chain calls. EthDiscoverer
// is the production implementation; tests substitute a stub.
type Discoverer interface {
	Discover(ctx context.Context, addr ethcommon.Address) (wire.PoolInfoTLV, error)
}

// EthDiscoverer performs the JSON-RPC eth_call sequence spec.md §4.7
// describes: token0(), token1(), then decimals() on each token,
// deriving pool type from the presence of a V3-only fee() accessor.
// Grounded on the teacher's persistence.BuildPersister factory pattern
// for wrapping a real client behind a narrow interface (RedisEvaler
// there, Discoverer here); the RPC plumbing itself uses go-ethereum's
// ethclient, already a direct dependency for the wire package's address
// types.
type EthDiscoverer struct {
	client  *ethclient.Client
	venue   uint16
	chainID uint64
	timeout time.Duration
}

// NewEthDiscoverer wraps an already-dialed ethclient.Client.
func NewEthDiscoverer(client *ethclient.Client, venue uint16, chainID uint64, timeout time.Duration) *EthDiscoverer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EthDiscoverer{client: client, venue: venue, chainID: chainID, timeout: timeout}
}

func (d *EthDiscoverer) call(ctx context.Context, to ethcommon.Address, selector []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	msg := ethereumCallMsg(to, selector)
	return d.client.CallContract(ctx, msg, nil)
}

func decodeAddress(out []byte) (ethcommon.Address, error) {
	if len(out) < 32 {
		return ethcommon.Address{}, fmt.Errorf("poolcache: short return data (%d bytes)", len(out))
	}
	var a ethcommon.Address
	copy(a[:], out[12:32])
	return a, nil
}

func decodeUint8(out []byte) (uint8, error) {
	if len(out) < 32 {
		return 0, fmt.Errorf("poolcache: short return data (%d bytes)", len(out))
	}
	return out[31], nil
}

// Discover implements spec.md §4.7 step 2: token0/token1, then decimals
// on each, then a pool-type heuristic. Any failed call aborts discovery
// entirely — partial/default records are never returned.
func (d *EthDiscoverer) Discover(ctx context.Context, addr ethcommon.Address) (wire.PoolInfoTLV, error) {
	t0Raw, err := d.call(ctx, addr, selectorToken0)
	if err != nil {
		return wire.PoolInfoTLV{}, fmt.Errorf("poolcache: token0() call failed: %w", err)
	}
	token0, err := decodeAddress(t0Raw)
	if err != nil {
		return wire.PoolInfoTLV{}, err
	}

	t1Raw, err := d.call(ctx, addr, selectorToken1)
	if err != nil {
		return wire.PoolInfoTLV{}, fmt.Errorf("poolcache: token1() call failed: %w", err)
	}
	token1, err := decodeAddress(t1Raw)
	if err != nil {
		return wire.PoolInfoTLV{}, err
	}

	dec0Raw, err := d.call(ctx, token0, selectorDecimals)
	if err != nil {
		return wire.PoolInfoTLV{}, fmt.Errorf("poolcache: token0.decimals() call failed: %w", err)
	}
	dec0, err := decodeUint8(dec0Raw)
	if err != nil {
		return wire.PoolInfoTLV{}, err
	}

	dec1Raw, err := d.call(ctx, token1, selectorDecimals)
	if err != nil {
		return wire.PoolInfoTLV{}, fmt.Errorf("poolcache: token1.decimals() call failed: %w", err)
	}
	dec1, err := decodeUint8(dec1Raw)
	if err != nil {
		return wire.PoolInfoTLV{}, err
	}

	poolType := wire.PoolTypeV2
	var feeTier uint32
	if feeRaw, err := d.call(ctx, addr, selectorFee); err == nil && len(feeRaw) >= 32 {
		poolType = wire.PoolTypeV3
		feeTier = uint32(feeRaw[28])<<24 | uint32(feeRaw[29])<<16 | uint32(feeRaw[30])<<8 | uint32(feeRaw[31])
	}

	now := uint64(time.Now().UnixNano())
	return wire.PoolInfoTLV{
		PoolAddr:       addr,
		Token0Addr:     token0,
		Token1Addr:     token1,
		FeeTier:        feeTier,
		Venue:          d.venue,
		Token0Decimals: dec0,
		Token1Decimals: dec1,
		PoolType:       poolType,
		DiscoveredAt:   now,
		LastSeen:       now,
	}, nil
}

// runWorker is one of the cache's bounded discovery workers: it drains
// discoveryCh and resolves each request via c.discoverer, inserting
// successes into the cache and never inserting partial records on
// failure (spec.md §4.7 step 4).
func (c *Cache) runWorker() {
	for req := range c.discoveryCh {
		if c.discoverer == nil {
			req.resp <- discoveryResult{err: fmt.Errorf("poolcache: no discoverer configured")}
			continue
		}
		info, err := c.discoverer.Discover(context.Background(), req.addr)
		if err != nil {
			req.resp <- discoveryResult{err: err}
			continue
		}
		c.insert(info)
		req.resp <- discoveryResult{info: info}
	}
}
