/*
 * Copyright (c) Meta Platforms, Inc. and affiliates.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ecs

import (
	"encoding/binary"
	"errors"

	"github.com/miekg/dns"
)

// msgHeaderLen is the length of the fixed DNS message header.
const msgHeaderLen = 12

var errShortMsg = errors.New("short DNS message")

// findOPT returns the offset of the RDLENGTH field of the OPT record in the
// packed message raw, or -1 when there is none.
func findOPT(raw []byte) (int, error) {
	if len(raw) < msgHeaderLen {
		return -1, errShortMsg
	}
	qdcount := int(binary.BigEndian.Uint16(raw[4:]))
	rrcount := int(binary.BigEndian.Uint16(raw[6:])) +
		int(binary.BigEndian.Uint16(raw[8:])) +
		int(binary.BigEndian.Uint16(raw[10:]))

	off := msgHeaderLen
	var err error
	for i := 0; i < qdcount; i++ {
		if _, off, err = dns.UnpackDomainName(raw, off); err != nil {
			return -1, err
		}
		// qtype, qclass
		off += 4
	}
	for i := 0; i < rrcount; i++ {
		if _, off, err = dns.UnpackDomainName(raw, off); err != nil {
			return -1, err
		}
		// type(2) class(2) ttl(4) rdlength(2)
		if off+10 > len(raw) {
			return -1, errShortMsg
		}
		if binary.BigEndian.Uint16(raw[off:]) == dns.TypeOPT {
			return off + 8, nil
		}
		off += 10 + int(binary.BigEndian.Uint16(raw[off+8:]))
	}
	return -1, nil
}

// StripMalformed removes from the packed message raw every ECS option whose
// data does not Decode, and returns the shortened message with the number
// of options removed. raw is compacted in place.
//
// miekg/dns pads or truncates the address of an ECS option to the source
// prefix length when unpacking, so the octet count can only be checked on
// the wire. Messages that cannot be walked are returned unchanged for the
// message parser to reject.
func StripMalformed(raw []byte) ([]byte, int) {
	at, err := findOPT(raw)
	if err != nil || at < 0 {
		return raw, 0
	}
	start := at + 2
	end := start + int(binary.BigEndian.Uint16(raw[at:]))
	if end > len(raw) {
		return raw, 0
	}

	type span struct{ from, to int }
	var drop []span
	off := start
	for off+4 <= end {
		code := binary.BigEndian.Uint16(raw[off:])
		next := off + 4 + int(binary.BigEndian.Uint16(raw[off+2:]))
		if next > end {
			return raw, 0
		}
		if code == OptionCode {
			if _, err := Decode(raw[off+4 : next]); err != nil {
				drop = append(drop, span{off, next})
			}
		}
		off = next
	}
	if off != end || len(drop) == 0 {
		return raw, 0
	}

	w := drop[0].from
	for i, d := range drop {
		keepTo := len(raw)
		if i+1 < len(drop) {
			keepTo = drop[i+1].from
		}
		w += copy(raw[w:], raw[d.to:keepTo])
	}
	removed := len(raw) - w
	binary.BigEndian.PutUint16(raw[at:], uint16(end-start-removed))
	return raw[:w], len(drop)
}
