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

package recovery

import "torq/internal/wire"

// requestType maps a chosen Strategy onto the wire-level
// RecoveryRequestType carried in the RecoveryRequestTLV.
func requestType(s Strategy) wire.RecoveryRequestType {
	if s == Retransmit {
		return wire.RecoveryRetransmit
	}
	return wire.RecoverySnapshot
}

// BuildRequestTLV constructs the 24-byte RecoveryRequestTLV payload a
// consumer sends to ask the relay for either a retransmit or a
// snapshot, per spec.md §4.5 and the TypeRecoveryRequest=110 record.
func BuildRequestTLV(consumerID, lastSeq, currentSeq uint64, strat Strategy) []byte {
	req := wire.RecoveryRequestTLV{
		ConsumerID:      consumerID,
		LastSequence:    lastSeq,
		CurrentSequence: currentSeq,
		RequestType:     requestType(strat),
	}
	buf := make([]byte, 24)
	req.Encode(buf)
	return buf
}
