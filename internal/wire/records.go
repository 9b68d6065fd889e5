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

package wire

import (
	"encoding/binary"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Registered TLV type bytes. Ranges per domain: 1-19 MarketData, 20-39
// Signal, 40-79 Execution, 80-99 control, 100-119 system, 120-199
// reserved, 200-254 vendor/pool-cache.
const (
	TypeTrade    uint8 = 1
	TypeQuote    uint8 = 2
	TypePoolSwap uint8 = 3
	TypePoolSync uint8 = 4
	TypePoolMint uint8 = 5
	TypePoolBurn uint8 = 6
	TypePoolState uint8 = 7
	TypePoolTick uint8 = 8

	TypeArbitrageSignal uint8 = 20

	TypeStateInvalidation uint8 = 90

	TypeRecoveryRequest uint8 = 110
	TypeTraceContext    uint8 = 111
	TypeSystemHealth    uint8 = 112

	TypePoolInfo uint8 = 200
)

var standardDescriptors = []TLVDescriptor{
	{Type: TypeTrade, Name: "Trade", FixedSize: 40, Domains: domainBit(DomainMarketData)},
	{Type: TypeQuote, Name: "Quote", FixedSize: 56, Domains: domainBit(DomainMarketData)},
	{Type: TypePoolSwap, Name: "PoolSwap", FixedSize: 208, Domains: domainBit(DomainMarketData)},
	{Type: TypePoolSync, Name: "PoolSync", FixedSize: 96, Domains: domainBit(DomainMarketData)},
	{Type: TypePoolMint, Name: "PoolMint", FixedSize: 112, Domains: domainBit(DomainMarketData)},
	{Type: TypePoolBurn, Name: "PoolBurn", FixedSize: 112, Domains: domainBit(DomainMarketData)},
	{Type: TypePoolState, Name: "PoolState", FixedSize: 88, Domains: domainBit(DomainMarketData)},
	{Type: TypePoolTick, Name: "PoolTick", FixedSize: 64, Domains: domainBit(DomainMarketData)},
	{Type: TypeArbitrageSignal, Name: "ArbitrageSignal", FixedSize: 170, Domains: domainBit(DomainSignal)},
	{Type: TypeStateInvalidation, Name: "StateInvalidation", FixedSize: 0, Domains: domainBit(DomainSignal) | domainBit(DomainSystem)},
	{Type: TypeRecoveryRequest, Name: "RecoveryRequest", FixedSize: 24, Domains: domainBit(DomainSignal) | domainBit(DomainExecution) | domainBit(DomainSystem)},
	{Type: TypeTraceContext, Name: "TraceContext", FixedSize: 32, Domains: domainBit(DomainSignal) | domainBit(DomainExecution) | domainBit(DomainSystem)},
	{Type: TypeSystemHealth, Name: "SystemHealth", FixedSize: 0, Domains: domainBit(DomainSystem)},
	{Type: TypePoolInfo, Name: "PoolInfo", FixedSize: 88, Domains: domainBit(DomainMarketData) | domainBit(DomainSystem)},
}

func need(buf []byte, n int, what string) error {
	if len(buf) < n {
		return fmt.Errorf("%w: %s wants %d bytes, got %d", ErrPayloadTooShort, what, n, len(buf))
	}
	return nil
}

// TradeTLV is a single executed trade (type 1, 40 bytes, MarketData).
type TradeTLV struct {
	InstrumentID uint64
	Price        FixedPoint8
	Volume       Amount128
	TimestampNs  uint64
	Flags        uint8
}

func (t TradeTLV) Encode(dst []byte) {
	_ = dst[39]
	binary.LittleEndian.PutUint64(dst[0:8], t.InstrumentID)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(t.Price))
	PutAmount128(dst[16:32], t.Volume)
	binary.LittleEndian.PutUint64(dst[32:40], t.TimestampNs)
	// Flags is not encoded: the four fields above fill all 40 bytes, so
	// DecodeTradeTLV always returns Flags as zero.
	_ = t.Flags
}

func DecodeTradeTLV(buf []byte) (TradeTLV, error) {
	if err := need(buf, 40, "TradeTLV"); err != nil {
		return TradeTLV{}, err
	}
	return TradeTLV{
		InstrumentID: binary.LittleEndian.Uint64(buf[0:8]),
		Price:        FixedPoint8(binary.LittleEndian.Uint64(buf[8:16])),
		Volume:       GetAmount128(buf[16:32]),
		TimestampNs:  binary.LittleEndian.Uint64(buf[32:40]),
	}, nil
}

// QuoteTLV is a venue best-bid/offer snapshot (type 2, 56 bytes, MarketData).
// TimestampNs travels as its low 48 bits in the last 6 bytes.
type QuoteTLV struct {
	Venue        uint16
	InstrumentID uint64
	BidPrice     FixedPoint8
	BidSize      Amount128
	AskPrice     FixedPoint8
	AskSize      uint64
	TimestampNs  uint64
}

func (q QuoteTLV) Encode(dst []byte) {
	_ = dst[55]
	binary.LittleEndian.PutUint16(dst[0:2], q.Venue)
	binary.LittleEndian.PutUint64(dst[2:10], q.InstrumentID)
	binary.LittleEndian.PutUint64(dst[10:18], uint64(q.BidPrice))
	PutAmount128(dst[18:34], q.BidSize)
	binary.LittleEndian.PutUint64(dst[34:42], uint64(q.AskPrice))
	binary.LittleEndian.PutUint64(dst[42:50], q.AskSize)
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], q.TimestampNs&0xFFFFFFFFFFFF)
	copy(dst[50:56], ts[:6])
}

func DecodeQuoteTLV(buf []byte) (QuoteTLV, error) {
	if err := need(buf, 56, "QuoteTLV"); err != nil {
		return QuoteTLV{}, err
	}
	var ts [8]byte
	copy(ts[:6], buf[50:56])
	return QuoteTLV{
		Venue:        binary.LittleEndian.Uint16(buf[0:2]),
		InstrumentID: binary.LittleEndian.Uint64(buf[2:10]),
		BidPrice:     FixedPoint8(binary.LittleEndian.Uint64(buf[10:18])),
		BidSize:      GetAmount128(buf[18:34]),
		AskPrice:     FixedPoint8(binary.LittleEndian.Uint64(buf[34:42])),
		AskSize:      binary.LittleEndian.Uint64(buf[42:50]),
		TimestampNs:  binary.LittleEndian.Uint64(ts[:]),
	}, nil
}

// PoolSwapTLV is a DEX swap event (type 3, 208 bytes, MarketData). Token
// amounts preserve native on-chain precision; no float conversion happens
// on this path.
type PoolSwapTLV struct {
	PoolAddr          ethcommon.Address
	TokenInAddr       ethcommon.Address
	TokenOutAddr      ethcommon.Address
	Venue             uint16
	AmountIn          Amount128
	AmountOut         Amount128
	LiquidityAfter    Amount128
	TimestampNs       uint64
	BlockNumber       uint64
	TickAfter         int32
	TokenInDecimals   uint8
	TokenOutDecimals  uint8
	SqrtPriceX96After Amount128
}

func (p PoolSwapTLV) Encode(dst []byte) {
	_ = dst[207]
	PutAddress(dst[0:32], p.PoolAddr)
	PutAddress(dst[32:64], p.TokenInAddr)
	PutAddress(dst[64:96], p.TokenOutAddr)
	binary.LittleEndian.PutUint16(dst[96:98], p.Venue)
	PutAmount128(dst[98:114], p.AmountIn)
	PutAmount128(dst[114:130], p.AmountOut)
	PutAmount128(dst[130:146], p.LiquidityAfter)
	binary.LittleEndian.PutUint64(dst[146:154], p.TimestampNs)
	binary.LittleEndian.PutUint64(dst[154:162], p.BlockNumber)
	binary.LittleEndian.PutUint32(dst[162:166], uint32(p.TickAfter))
	dst[166] = p.TokenInDecimals
	dst[167] = p.TokenOutDecimals
	PutAmount128(dst[168:184], p.SqrtPriceX96After)
	for i := 184; i < 208; i++ {
		dst[i] = 0
	}
}

func DecodePoolSwapTLV(buf []byte) (PoolSwapTLV, error) {
	if err := need(buf, 208, "PoolSwapTLV"); err != nil {
		return PoolSwapTLV{}, err
	}
	poolAddr, err := GetAddress(buf[0:32])
	if err != nil {
		return PoolSwapTLV{}, fmt.Errorf("pool_addr: %w", err)
	}
	tokenIn, err := GetAddress(buf[32:64])
	if err != nil {
		return PoolSwapTLV{}, fmt.Errorf("token_in_addr: %w", err)
	}
	tokenOut, err := GetAddress(buf[64:96])
	if err != nil {
		return PoolSwapTLV{}, fmt.Errorf("token_out_addr: %w", err)
	}
	return PoolSwapTLV{
		PoolAddr:          poolAddr,
		TokenInAddr:       tokenIn,
		TokenOutAddr:      tokenOut,
		Venue:             binary.LittleEndian.Uint16(buf[96:98]),
		AmountIn:          GetAmount128(buf[98:114]),
		AmountOut:         GetAmount128(buf[114:130]),
		LiquidityAfter:    GetAmount128(buf[130:146]),
		TimestampNs:       binary.LittleEndian.Uint64(buf[146:154]),
		BlockNumber:       binary.LittleEndian.Uint64(buf[154:162]),
		TickAfter:         int32(binary.LittleEndian.Uint32(buf[162:166])),
		TokenInDecimals:   buf[166],
		TokenOutDecimals:  buf[167],
		SqrtPriceX96After: GetAmount128(buf[168:184]),
	}, nil
}

// PoolSyncTLV mirrors a Uniswap V2-style Sync event: post-swap reserves
// for both pool tokens (type 4, 96 bytes, MarketData).
type PoolSyncTLV struct {
	PoolAddr    ethcommon.Address
	Reserve0    Amount128
	Reserve1    Amount128
	TimestampNs uint64
	BlockNumber uint64
}

func (s PoolSyncTLV) Encode(dst []byte) {
	_ = dst[95]
	PutAddress(dst[0:32], s.PoolAddr)
	PutAmount128(dst[32:48], s.Reserve0)
	PutAmount128(dst[48:64], s.Reserve1)
	binary.LittleEndian.PutUint64(dst[64:72], s.TimestampNs)
	binary.LittleEndian.PutUint64(dst[72:80], s.BlockNumber)
	for i := 80; i < 96; i++ {
		dst[i] = 0
	}
}

func DecodePoolSyncTLV(buf []byte) (PoolSyncTLV, error) {
	if err := need(buf, 96, "PoolSyncTLV"); err != nil {
		return PoolSyncTLV{}, err
	}
	addr, err := GetAddress(buf[0:32])
	if err != nil {
		return PoolSyncTLV{}, err
	}
	return PoolSyncTLV{
		PoolAddr:    addr,
		Reserve0:    GetAmount128(buf[32:48]),
		Reserve1:    GetAmount128(buf[48:64]),
		TimestampNs: binary.LittleEndian.Uint64(buf[64:72]),
		BlockNumber: binary.LittleEndian.Uint64(buf[72:80]),
	}, nil
}

// PoolMintTLV/PoolBurnTLV record liquidity added to or removed from a pool
// by a given provider (type 5/6, 112 bytes each, MarketData).
type PoolMintTLV struct {
	PoolAddr     ethcommon.Address
	ProviderAddr ethcommon.Address
	Amount0      Amount128
	Amount1      Amount128
	TimestampNs  uint64
	BlockNumber  uint64
}

func (m PoolMintTLV) Encode(dst []byte) {
	_ = dst[111]
	PutAddress(dst[0:32], m.PoolAddr)
	PutAddress(dst[32:64], m.ProviderAddr)
	PutAmount128(dst[64:80], m.Amount0)
	PutAmount128(dst[80:96], m.Amount1)
	binary.LittleEndian.PutUint64(dst[96:104], m.TimestampNs)
	binary.LittleEndian.PutUint64(dst[104:112], m.BlockNumber)
}

func DecodePoolMintTLV(buf []byte) (PoolMintTLV, error) {
	if err := need(buf, 112, "PoolMintTLV"); err != nil {
		return PoolMintTLV{}, err
	}
	pool, err := GetAddress(buf[0:32])
	if err != nil {
		return PoolMintTLV{}, err
	}
	provider, err := GetAddress(buf[32:64])
	if err != nil {
		return PoolMintTLV{}, err
	}
	return PoolMintTLV{
		PoolAddr:     pool,
		ProviderAddr: provider,
		Amount0:      GetAmount128(buf[64:80]),
		Amount1:      GetAmount128(buf[80:96]),
		TimestampNs:  binary.LittleEndian.Uint64(buf[96:104]),
		BlockNumber:  binary.LittleEndian.Uint64(buf[104:112]),
	}, nil
}

type PoolBurnTLV PoolMintTLV

func (b PoolBurnTLV) Encode(dst []byte) { PoolMintTLV(b).Encode(dst) }

func DecodePoolBurnTLV(buf []byte) (PoolBurnTLV, error) {
	m, err := DecodePoolMintTLV(buf)
	return PoolBurnTLV(m), err
}

// PoolStateTLV is a post-transaction V3 pool state snapshot (type 7, 88
// bytes, MarketData). No float-derived "virtual reserves" field is
// carried; see the recorded Open Question decision in SPEC_FULL.md.
type PoolStateTLV struct {
	PoolAddr        ethcommon.Address
	SqrtPriceX96    Amount128
	Tick            int32
	Liquidity       Amount128
	TimestampNs     uint64
	BlockNumber     uint64
}

func (s PoolStateTLV) Encode(dst []byte) {
	_ = dst[87]
	PutAddress(dst[0:32], s.PoolAddr)
	PutAmount128(dst[32:48], s.SqrtPriceX96)
	binary.LittleEndian.PutUint32(dst[48:52], uint32(s.Tick))
	PutAmount128(dst[52:68], s.Liquidity)
	binary.LittleEndian.PutUint64(dst[68:76], s.TimestampNs)
	binary.LittleEndian.PutUint64(dst[76:84], s.BlockNumber)
	for i := 84; i < 88; i++ {
		dst[i] = 0
	}
}

func DecodePoolStateTLV(buf []byte) (PoolStateTLV, error) {
	if err := need(buf, 88, "PoolStateTLV"); err != nil {
		return PoolStateTLV{}, err
	}
	addr, err := GetAddress(buf[0:32])
	if err != nil {
		return PoolStateTLV{}, err
	}
	return PoolStateTLV{
		PoolAddr:     addr,
		SqrtPriceX96: GetAmount128(buf[32:48]),
		Tick:         int32(binary.LittleEndian.Uint32(buf[48:52])),
		Liquidity:    GetAmount128(buf[52:68]),
		TimestampNs:  binary.LittleEndian.Uint64(buf[68:76]),
		BlockNumber:  binary.LittleEndian.Uint64(buf[76:84]),
	}, nil
}

// PoolTickTLV records a V3 tick crossing (type 8, 64 bytes, MarketData).
type PoolTickTLV struct {
	PoolAddr        ethcommon.Address
	Tick            int32
	LiquidityNet    Amount128
	TimestampNs     uint64
	BlockNumber     uint64
}

func (t PoolTickTLV) Encode(dst []byte) {
	_ = dst[63]
	PutAddress(dst[0:32], t.PoolAddr)
	binary.LittleEndian.PutUint32(dst[32:36], uint32(t.Tick))
	PutAmount128(dst[36:52], t.LiquidityNet)
	binary.LittleEndian.PutUint64(dst[52:60], t.TimestampNs)
	binary.LittleEndian.PutUint32(dst[60:64], uint32(t.BlockNumber))
}

func DecodePoolTickTLV(buf []byte) (PoolTickTLV, error) {
	if err := need(buf, 64, "PoolTickTLV"); err != nil {
		return PoolTickTLV{}, err
	}
	addr, err := GetAddress(buf[0:32])
	if err != nil {
		return PoolTickTLV{}, err
	}
	return PoolTickTLV{
		PoolAddr:     addr,
		Tick:         int32(binary.LittleEndian.Uint32(buf[32:36])),
		LiquidityNet: GetAmount128(buf[36:52]),
		TimestampNs:  binary.LittleEndian.Uint64(buf[52:60]),
		BlockNumber:  uint64(binary.LittleEndian.Uint32(buf[60:64])),
	}, nil
}

// ArbitrageSignalTLV (type 20, 170 bytes, Signal) is a packed cross-venue
// opportunity signal. All monetary fields are 8-decimal fixed point.
// "Packed" here means pool and token addresses travel as raw 20-byte
// fields rather than the 32-byte zero-padded slots the DEX event records
// use: spec.md does not tabulate this record's exact byte layout the way
// it does the header, so this layout is this implementation's choice to
// fit every named field into the stated 170 bytes (see DESIGN.md).
type ArbitrageSignalTLV struct {
	StrategyID   uint64
	SignalID     uint64
	ChainID      uint32
	SourcePool   ethcommon.Address
	TargetPool   ethcommon.Address
	SourceVenue  uint16
	TargetVenue  uint16
	TokenIn      ethcommon.Address
	TokenOut     ethcommon.Address
	ProfitUSD    FixedPoint8
	CapitalUSD   FixedPoint8
	FeesUSD      FixedPoint8
	GasUSD       FixedPoint8
	SlippageUSD  FixedPoint8
	NetUSD       FixedPoint8
	SpreadBps    int32
	Priority     uint8
	ValidUntilNs uint64
	TimestampNs  uint64
}

func (a ArbitrageSignalTLV) Encode(dst []byte) {
	_ = dst[169]
	binary.LittleEndian.PutUint64(dst[0:8], a.StrategyID)
	binary.LittleEndian.PutUint64(dst[8:16], a.SignalID)
	binary.LittleEndian.PutUint32(dst[16:20], a.ChainID)
	copy(dst[20:40], a.SourcePool.Bytes())
	copy(dst[40:60], a.TargetPool.Bytes())
	binary.LittleEndian.PutUint16(dst[60:62], a.SourceVenue)
	binary.LittleEndian.PutUint16(dst[62:64], a.TargetVenue)
	copy(dst[64:84], a.TokenIn.Bytes())
	copy(dst[84:104], a.TokenOut.Bytes())
	binary.LittleEndian.PutUint64(dst[104:112], uint64(a.ProfitUSD))
	binary.LittleEndian.PutUint64(dst[112:120], uint64(a.CapitalUSD))
	binary.LittleEndian.PutUint32(dst[120:124], uint32(a.FeesUSD))
	binary.LittleEndian.PutUint32(dst[124:128], uint32(a.GasUSD))
	binary.LittleEndian.PutUint32(dst[128:132], uint32(a.SlippageUSD))
	binary.LittleEndian.PutUint32(dst[132:136], uint32(a.NetUSD))
	binary.LittleEndian.PutUint32(dst[136:140], uint32(a.SpreadBps))
	dst[140] = a.Priority
	binary.LittleEndian.PutUint64(dst[141:149], a.ValidUntilNs)
	binary.LittleEndian.PutUint64(dst[149:157], a.TimestampNs)
	for i := 157; i < 170; i++ {
		dst[i] = 0
	}
}

func DecodeArbitrageSignalTLV(buf []byte) (ArbitrageSignalTLV, error) {
	if err := need(buf, 170, "ArbitrageSignalTLV"); err != nil {
		return ArbitrageSignalTLV{}, err
	}
	var sourcePool, targetPool, tokenIn, tokenOut ethcommon.Address
	copy(sourcePool[:], buf[20:40])
	copy(targetPool[:], buf[40:60])
	copy(tokenIn[:], buf[64:84])
	copy(tokenOut[:], buf[84:104])
	return ArbitrageSignalTLV{
		StrategyID:   binary.LittleEndian.Uint64(buf[0:8]),
		SignalID:     binary.LittleEndian.Uint64(buf[8:16]),
		ChainID:      binary.LittleEndian.Uint32(buf[16:20]),
		SourcePool:   sourcePool,
		TargetPool:   targetPool,
		SourceVenue:  binary.LittleEndian.Uint16(buf[60:62]),
		TargetVenue:  binary.LittleEndian.Uint16(buf[62:64]),
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		ProfitUSD:    FixedPoint8(binary.LittleEndian.Uint64(buf[104:112])),
		CapitalUSD:   FixedPoint8(binary.LittleEndian.Uint64(buf[112:120])),
		FeesUSD:      FixedPoint8(int32(binary.LittleEndian.Uint32(buf[120:124]))),
		GasUSD:       FixedPoint8(int32(binary.LittleEndian.Uint32(buf[124:128]))),
		SlippageUSD:  FixedPoint8(int32(binary.LittleEndian.Uint32(buf[128:132]))),
		NetUSD:       FixedPoint8(int32(binary.LittleEndian.Uint32(buf[132:136]))),
		SpreadBps:    int32(binary.LittleEndian.Uint32(buf[136:140])),
		Priority:     buf[140],
		ValidUntilNs: binary.LittleEndian.Uint64(buf[141:149]),
		TimestampNs:  binary.LittleEndian.Uint64(buf[149:157]),
	}, nil
}

// InvalidationReason enumerates why an adapter evicted its tracked state.
type InvalidationReason uint8

const (
	ReasonDisconnection InvalidationReason = 1
	ReasonAuthFailure   InvalidationReason = 2
	ReasonRateLimited   InvalidationReason = 3
	ReasonStaleness     InvalidationReason = 4
	ReasonMaintenance   InvalidationReason = 5
	ReasonRecovery      InvalidationReason = 6
)

// StateInvalidationTLV (type 90, variable length, Signal/System) tells
// consumers to evict all cached state for a venue.
type StateInvalidationTLV struct {
	Venue               uint16
	Sequence            uint64
	Reason              InvalidationReason
	AffectedInstruments []uint64
}

func (s StateInvalidationTLV) Encode(dst []byte) []byte {
	var head [11]byte
	binary.LittleEndian.PutUint16(head[0:2], s.Venue)
	binary.LittleEndian.PutUint64(head[2:10], s.Sequence)
	head[10] = uint8(s.Reason)
	dst = append(dst, head[:]...)
	for _, id := range s.AffectedInstruments {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], id)
		dst = append(dst, b[:]...)
	}
	return dst
}

func DecodeStateInvalidationTLV(buf []byte) (StateInvalidationTLV, error) {
	if err := need(buf, 11, "StateInvalidationTLV"); err != nil {
		return StateInvalidationTLV{}, err
	}
	rest := buf[11:]
	if len(rest)%8 != 0 {
		return StateInvalidationTLV{}, fmt.Errorf("wire: StateInvalidationTLV instrument list not 8-byte aligned (%d bytes)", len(rest))
	}
	s := StateInvalidationTLV{
		Venue:    binary.LittleEndian.Uint16(buf[0:2]),
		Sequence: binary.LittleEndian.Uint64(buf[2:10]),
		Reason:   InvalidationReason(buf[10]),
	}
	for i := 0; i < len(rest); i += 8 {
		s.AffectedInstruments = append(s.AffectedInstruments, binary.LittleEndian.Uint64(rest[i:i+8]))
	}
	return s, nil
}

// RecoveryRequestType selects the strategy a consumer is requesting.
type RecoveryRequestType uint8

const (
	RecoveryRetransmit RecoveryRequestType = 1
	RecoverySnapshot    RecoveryRequestType = 2
)

// RecoveryRequestTLV (type 110, 24 bytes, Signal/Execution/System).
type RecoveryRequestTLV struct {
	ConsumerID      uint64
	LastSequence    uint64
	CurrentSequence uint64
	RequestType     RecoveryRequestType
}

// Encode writes the 24-byte RecoveryRequestTLV; see EncodeRecoveryRequest
// for how RequestType is packed without growing the payload past the
// spec's fixed 24 bytes.
func (r RecoveryRequestTLV) Encode(dst []byte) {
	EncodeRecoveryRequest(r, dst)
}

func DecodeRecoveryRequestTLV(buf []byte) (RecoveryRequestTLV, error) {
	if err := need(buf, 24, "RecoveryRequestTLV"); err != nil {
		return RecoveryRequestTLV{}, err
	}
	return RecoveryRequestTLV{
		ConsumerID:      binary.LittleEndian.Uint64(buf[0:8]),
		LastSequence:    binary.LittleEndian.Uint64(buf[8:16]),
		CurrentSequence: binary.LittleEndian.Uint64(buf[16:24]) &^ (uint64(0b11) << 62),
		RequestType:     RecoveryRequestType(buf[23] >> 6), // see EncodeRecoveryRequest
	}, nil
}

// EncodeRecoveryRequest packs RequestType into the top two bits of the
// CurrentSequence high byte, keeping the payload at the spec's mandated
// 24 bytes (current_sequence values never need the top 2 bits: sequence
// space is u64 but no real deployment runs 2^62 messages on one source).
func EncodeRecoveryRequest(r RecoveryRequestTLV, dst []byte) {
	_ = dst[23]
	binary.LittleEndian.PutUint64(dst[0:8], r.ConsumerID)
	binary.LittleEndian.PutUint64(dst[8:16], r.LastSequence)
	cur := r.CurrentSequence &^ (uint64(0b11) << 62)
	cur |= uint64(r.RequestType&0b11) << 62
	binary.LittleEndian.PutUint64(dst[16:24], cur)
}

// StageFlags is an OR-accumulated set of pipeline stages a trace has
// crossed.
type StageFlags uint8

const (
	StageCollected StageFlags = 1 << iota
	StageRelayed
	StageProcessed
	StageExecuted
)

// TraceContextTLV (type 111, 32 bytes) is propagated by copy and mutated
// via ContinueTrace as a message crosses service boundaries.
type TraceContextTLV struct {
	TraceID       uint64
	StartTsNs     uint64
	CurrentTsNs   uint64
	SourceService uint8
	SpanDepth     uint8
	StageBits     StageFlags
}

func (t TraceContextTLV) Encode(dst []byte) {
	_ = dst[31]
	binary.LittleEndian.PutUint64(dst[0:8], t.TraceID)
	binary.LittleEndian.PutUint64(dst[8:16], t.StartTsNs)
	binary.LittleEndian.PutUint64(dst[16:24], t.CurrentTsNs)
	dst[24] = t.SourceService
	dst[25] = t.SpanDepth
	dst[26] = uint8(t.StageBits)
	for i := 27; i < 32; i++ {
		dst[i] = 0
	}
}

func DecodeTraceContextTLV(buf []byte) (TraceContextTLV, error) {
	if err := need(buf, 32, "TraceContextTLV"); err != nil {
		return TraceContextTLV{}, err
	}
	return TraceContextTLV{
		TraceID:       binary.LittleEndian.Uint64(buf[0:8]),
		StartTsNs:     binary.LittleEndian.Uint64(buf[8:16]),
		CurrentTsNs:   binary.LittleEndian.Uint64(buf[16:24]),
		SourceService: buf[24],
		SpanDepth:     buf[25],
		StageBits:     StageFlags(buf[26]),
	}, nil
}

// ContinueTrace advances t as it crosses into newService: bumps span
// depth, refreshes current_ts_ns, ORs in stage, and preserves trace_id
// and start_ts_ns.
func ContinueTrace(t TraceContextTLV, newService uint8, nowNs uint64, stage StageFlags) TraceContextTLV {
	t.SourceService = newService
	t.CurrentTsNs = nowNs
	t.SpanDepth++
	t.StageBits |= stage
	return t
}

// PoolType enumerates the DEX pool implementations Torq recognizes.
type PoolType uint8

const (
	PoolTypeV2 PoolType = iota
	PoolTypeV3
	PoolTypeQuickSwapV2
	PoolTypeQuickSwapV3
	PoolTypeSushiV2
	PoolTypeCurveV2
	PoolTypeBalancerV2
)

// PoolInfoTLV (type 200, 88 bytes, vendor/pool-cache range) is the
// durable pool-metadata record, both on the wire and in the on-disk
// snapshot/journal body.
type PoolInfoTLV struct {
	PoolAddr       ethcommon.Address
	Token0Addr     ethcommon.Address
	Token1Addr     ethcommon.Address
	FeeTier        uint32
	Venue          uint16
	Token0Decimals uint8
	Token1Decimals uint8
	PoolType       PoolType
	DiscoveredAt   uint64
	LastSeen       uint64
}

const PoolInfoTLVSize = 88

func (p PoolInfoTLV) Encode(dst []byte) {
	_ = dst[PoolInfoTLVSize-1]
	copy(dst[0:20], p.PoolAddr.Bytes())
	copy(dst[20:40], p.Token0Addr.Bytes())
	copy(dst[40:60], p.Token1Addr.Bytes())
	binary.LittleEndian.PutUint32(dst[60:64], p.FeeTier)
	binary.LittleEndian.PutUint16(dst[64:66], p.Venue)
	dst[66] = p.Token0Decimals
	dst[67] = p.Token1Decimals
	dst[68] = uint8(p.PoolType)
	binary.LittleEndian.PutUint64(dst[69:77], p.DiscoveredAt)
	binary.LittleEndian.PutUint64(dst[77:85], p.LastSeen)
	for i := 85; i < PoolInfoTLVSize; i++ {
		dst[i] = 0
	}
}

func DecodePoolInfoTLV(buf []byte) (PoolInfoTLV, error) {
	if err := need(buf, PoolInfoTLVSize, "PoolInfoTLV"); err != nil {
		return PoolInfoTLV{}, err
	}
	var pool, t0, t1 ethcommon.Address
	copy(pool[:], buf[0:20])
	copy(t0[:], buf[20:40])
	copy(t1[:], buf[40:60])
	return PoolInfoTLV{
		PoolAddr:       pool,
		Token0Addr:     t0,
		Token1Addr:     t1,
		FeeTier:        binary.LittleEndian.Uint32(buf[60:64]),
		Venue:          binary.LittleEndian.Uint16(buf[64:66]),
		Token0Decimals: buf[66],
		Token1Decimals: buf[67],
		PoolType:       PoolType(buf[68]),
		DiscoveredAt:   binary.LittleEndian.Uint64(buf[69:77]),
		LastSeen:       binary.LittleEndian.Uint64(buf[77:85]),
	}, nil
}

// SystemHealthTLV is emitted on a fixed interval (default 30s) mirroring
// process vitals. Variable length: a venue/component name trails the
// fixed fields.
type SystemHealthTLV struct {
	TimestampNs   uint64
	CPUPercent    FixedPoint8
	MemoryBytes   uint64
	MessageRate   uint64
	LatencyP95Ns  uint64
	Component     string
}

func (s SystemHealthTLV) Encode(dst []byte) []byte {
	var head [40]byte
	binary.LittleEndian.PutUint64(head[0:8], s.TimestampNs)
	binary.LittleEndian.PutUint64(head[8:16], uint64(s.CPUPercent))
	binary.LittleEndian.PutUint64(head[16:24], s.MemoryBytes)
	binary.LittleEndian.PutUint64(head[24:32], s.MessageRate)
	binary.LittleEndian.PutUint64(head[32:40], s.LatencyP95Ns)
	dst = append(dst, head[:]...)
	dst = append(dst, s.Component...)
	return dst
}

func DecodeSystemHealthTLV(buf []byte) (SystemHealthTLV, error) {
	if err := need(buf, 40, "SystemHealthTLV"); err != nil {
		return SystemHealthTLV{}, err
	}
	return SystemHealthTLV{
		TimestampNs:  binary.LittleEndian.Uint64(buf[0:8]),
		CPUPercent:   FixedPoint8(binary.LittleEndian.Uint64(buf[8:16])),
		MemoryBytes:  binary.LittleEndian.Uint64(buf[16:24]),
		MessageRate:  binary.LittleEndian.Uint64(buf[24:32]),
		LatencyP95Ns: binary.LittleEndian.Uint64(buf[32:40]),
		Component:    string(buf[40:]),
	}, nil
}
