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

import "errors"

// Sentinel errors for header and TLV parsing. Callers test with errors.Is;
// wrapping at call boundaries adds the offending offset/type/length.
var (
	ErrShortHeader     = errors.New("wire: buffer shorter than header size")
	ErrBadMagic        = errors.New("wire: magic bytes mismatch")
	ErrUnsupportedVersion = errors.New("wire: unsupported header version")
	ErrBadDomain       = errors.New("wire: unknown relay domain")
	ErrChecksumMismatch = errors.New("wire: checksum mismatch")

	ErrShortTLV        = errors.New("wire: buffer shorter than TLV header")
	ErrTruncatedPayload = errors.New("wire: TLV payload truncated")
	ErrUnknownType     = errors.New("wire: unknown TLV type")
	ErrPayloadTooShort = errors.New("wire: payload shorter than fixed record size")
	ErrPayloadTooLong  = errors.New("wire: payload exceeds maximum for this policy")
	ErrTypeOutOfRange  = errors.New("wire: TLV type not permitted for this relay domain")
)
