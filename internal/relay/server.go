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

package relay

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"torq/internal/validator"
	"torq/internal/wire"
)

// Server is a domain-partitioned relay: one Unix-domain listener, one
// topic registry, one broadcaster, one validator. Connections are
// symmetric per spec.md §4.4 — each fork's reader broadcasts what it
// accepts, and its writer drains whatever the broadcaster routed to it,
// with no producer/consumer role distinction.
//
// The relay also services the consumer-driven recovery protocol
// (spec.md §4.5): a subscriber that detects a gap in the stream it
// received (because its mailbox overflowed under Broadcaster.Publish)
// sends a RecoveryRequestTLV back over its own connection, with the
// frame's header.Source naming the upstream source whose sequence
// space it is resyncing. The relay is the party that dropped the
// frames in the first place, so it is also the only party able to
// serve the replay: per-source retained frames live in replay.
type Server struct {
	domain         wire.RelayDomain
	socketPath     string
	registry       *wire.Registry
	validator      *validator.Validator
	topics         *TopicRegistry
	broadcaster    *Broadcaster
	extract        ExtractionStrategy
	capacity       int
	replayCapacity int
	drainDeadline  time.Duration
	log            logrus.FieldLogger

	replay       sync.Map // wire.Source -> *replayRing
	nextConsumer atomic.Uint64
	listener     net.Listener
	wg           sync.WaitGroup
}

// NewServer builds a relay server for one domain. extract picks the
// topic for each accepted frame; SourceTypeStrategy is the documented
// default.
func NewServer(domain wire.RelayDomain, socketPath string, v *validator.Validator, reg *wire.Registry, broadcastCapacity int, extract ExtractionStrategy) *Server {
	if extract == nil {
		extract = SourceTypeStrategy
	}
	topics := NewTopicRegistry()
	return &Server{
		domain:         domain,
		socketPath:     socketPath,
		registry:       reg,
		validator:      v,
		topics:         topics,
		broadcaster:    NewBroadcaster(topics),
		extract:        extract,
		capacity:       broadcastCapacity,
		replayCapacity: defaultReplayCapacity,
		drainDeadline:  5 * time.Second,
		log:            logrus.StandardLogger().WithField("domain", domain.String()),
	}
}

// replayRingFor returns the retained-frame ring for src, creating it on
// first use. Same fast-path-Load / LoadOrStore-on-miss pattern as
// SequenceTracker.stateFor and recovery.Coordinator.ManagerFor.
func (s *Server) replayRingFor(src wire.Source) *replayRing {
	if v, ok := s.replay.Load(src); ok {
		return v.(*replayRing)
	}
	ring := newReplayRing(s.replayCapacity)
	actual, _ := s.replay.LoadOrStore(src, ring)
	return actual.(*replayRing)
}

// maxFrameSize bounds a single unixpacket read buffer. It is sized well
// above any domain's configured max_message_size; the validator still
// enforces the real per-domain limit.
const maxFrameSize = 64 * 1024

// ListenAndServe binds the Unix-domain socket (removing any stale
// socket file left by a prior crash) and accepts connections until ctx
// is canceled. On cancellation it stops accepting and waits, up to
// drainDeadline, for in-flight writer queues to drain.
//
// The socket is SOCK_SEQPACKET ("unixpacket"): each Read/Write carries
// exactly one frame, so the absence of a payload_size field in the
// 32-byte header (spec.md's header table has none) never creates a
// stream-framing ambiguity.
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)
	ln, err := net.Listen("unixpacket", s.socketPath)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", s.socketPath, err)
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return s.drain()
			default:
				return fmt.Errorf("relay: accept: %w", err)
			}
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// drain waits for in-flight connection handlers to finish, up to
// drainDeadline, so writer queues get a chance to flush before the
// process exits.
func (s *Server) drain() error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(s.drainDeadline):
		return fmt.Errorf("relay: shutdown drain deadline exceeded")
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	id := ConsumerID(s.nextConsumer.Add(1))
	sub := NewSubscriber(id, s.capacity)
	s.broadcaster.Add(sub)
	activeConsumers.WithLabelValues(s.domain.String()).Inc()
	defer func() {
		s.broadcaster.Remove(id)
		activeConsumers.WithLabelValues(s.domain.String()).Dec()
	}()

	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		s.writeLoop(conn, sub)
	}()

	s.readLoop(ctx, conn, id)

	if cr, ok := conn.(interface{ CloseRead() error }); ok {
		cr.CloseRead()
	}
	writerWG.Wait()
}

// readLoop reads one complete frame per unixpacket Read, validates it
// against this domain's policy, and broadcasts accepted frames to every
// topic subscriber.
func (s *Server) readLoop(ctx context.Context, conn net.Conn, id ConsumerID) {
	buf := make([]byte, maxFrameSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if n < wire.HeaderSize {
			s.log.Warn("dropping short frame")
			continue
		}
		frame := buf[:n]
		headerBuf := frame[:wire.HeaderSize]
		payload := frame[wire.HeaderSize:]

		h, err := wire.ParseHeader(headerBuf)
		if err != nil {
			s.log.WithError(err).Warn("dropping frame: bad header")
			continue
		}

		views, err := wire.ParseTLVs(payload)
		if err != nil {
			s.log.WithError(err).Warn("dropping frame: bad TLV payload")
			framesRejected.WithLabelValues(s.domain.String()).Inc()
			continue
		}

		if s.recoveryEligible() {
			if req, ok := extractRecoveryRequest(views); ok {
				s.serveRecoveryRequest(id, h.Source, req)
				continue
			}
		}

		if err := s.validator.Validate(h, headerBuf, payload, views); err != nil {
			s.log.WithError(err).Debug("dropping frame: validation failed")
			framesRejected.WithLabelValues(s.domain.String()).Inc()
			if _, ok := err.(*validator.SequenceGapError); ok {
				sequenceGaps.WithLabelValues(s.domain.String()).Inc()
			}
			continue
		}
		framesAccepted.WithLabelValues(s.domain.String()).Inc()

		owned := make([]byte, n)
		copy(owned, frame)

		s.replayRingFor(h.Source).record(h.Sequence, owned)

		topic := s.extract(h, views)
		if !s.topics.OwnsTopic(topic) {
			continue
		}
		delivered, dropped := s.broadcaster.Publish(topic, owned)
		fanoutDelivered.WithLabelValues(s.domain.String()).Add(float64(delivered))
		fanoutDropped.WithLabelValues(s.domain.String()).Add(float64(dropped))

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Server) writeLoop(conn net.Conn, sub *Subscriber) {
	for frame := range sub.Frames() {
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

// recoveryEligible reports whether this relay's domain carries
// RecoveryRequestTLV (type 110) per the wire registry: Signal,
// Execution, and System, but not MarketData. A MarketData relay leaves
// any type-110 TLV for the validator to reject as a domain mismatch
// rather than intercepting it here.
func (s *Server) recoveryEligible() bool {
	switch s.domain {
	case wire.DomainSignal, wire.DomainExecution, wire.DomainSystem:
		return true
	default:
		return false
	}
}

// extractRecoveryRequest scans an inbound frame's parsed TLVs for a
// RecoveryRequestTLV (type 110); a frame carrying one is a control
// message from a lagging consumer, not data-plane traffic, and is
// handled directly rather than run through the sequence validator.
func extractRecoveryRequest(views []wire.TLVView) (wire.RecoveryRequestTLV, bool) {
	for _, v := range views {
		if v.Type != wire.TypeRecoveryRequest {
			continue
		}
		req, err := wire.DecodeRecoveryRequestTLV(v.Payload)
		if err != nil {
			return wire.RecoveryRequestTLV{}, false
		}
		return req, true
	}
	return wire.RecoveryRequestTLV{}, false
}

// serveRecoveryRequest answers a consumer's RecoveryRequestTLV for the
// upstream source named by its frame's header.Source (spec.md §4.5):
// Retransmit replays retained frames for (last_sequence, current_sequence)
// on the requester's own connection; Snapshot, or a Retransmit whose
// range has already aged out of the retained ring, falls back to a
// StateInvalidationTLV telling the consumer to evict its state for that
// source rather than wait on data the relay can no longer replay.
func (s *Server) serveRecoveryRequest(id ConsumerID, source wire.Source, req wire.RecoveryRequestTLV) {
	if req.RequestType == wire.RecoveryRetransmit {
		if frames, ok := s.replayRingFor(source).rangeFrames(req.LastSequence, req.CurrentSequence); ok {
			for _, frame := range frames {
				s.broadcaster.Unicast(id, frame)
			}
			recoveryRetransmits.WithLabelValues(s.domain.String()).Inc()
			return
		}
	}
	s.sendRecoveryFallback(id, source, req)
}

// sendRecoveryFallback builds and unicasts a StateInvalidationTLV to
// consumer id, reason=Recovery. Only Signal and System carry type 90
// per the wire registry, so a relay running the Execution domain has
// no fallback to offer and the request is simply dropped.
func (s *Server) sendRecoveryFallback(id ConsumerID, source wire.Source, req wire.RecoveryRequestTLV) {
	if s.domain != wire.DomainSignal && s.domain != wire.DomainSystem {
		s.log.WithField("consumer", id).Warn("recovery request exceeds retained replay window; no StateInvalidation fallback on this domain")
		return
	}
	tlv := wire.StateInvalidationTLV{
		Sequence: req.CurrentSequence,
		Reason:   wire.ReasonRecovery,
	}
	body, err := wire.AppendTLV(nil, wire.TypeStateInvalidation, tlv.Encode(nil))
	if err != nil {
		s.log.WithError(err).Warn("failed to build recovery fallback frame")
		return
	}
	frame := make([]byte, wire.HeaderSize)
	h := wire.Header{Version: wire.SupportedVersion, Domain: s.domain, Source: source, Sequence: req.CurrentSequence, TimestampNs: uint64(time.Now().UnixNano())}
	h.Encode(frame, body)
	frame = append(frame, body...)

	s.broadcaster.Unicast(id, frame)
	recoveryFallbacks.WithLabelValues(s.domain.String()).Inc()
}
