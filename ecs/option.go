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

// Package ecs encodes and decodes the EDNS Client Subnet option (RFC 7871).
package ecs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/facebook/dns/ecsrecursor/prefix"
)

// OptionCode is the EDNS0 option code assigned to ECS.
const OptionCode = 8

// headerLen is family(2) + source prefix length(1) + scope prefix length(1).
const headerLen = 4

// ErrMalformedOption is returned when option data does not decode to a
// valid ECS option.
var ErrMalformedOption = errors.New("malformed ECS option")

// Option is a structured ECS option.
// Address bits beyond SourcePrefixLength are always zero.
// ScopePrefixLength is set by responders only and is 0 on requests.
type Option struct {
	Family             prefix.Family
	SourcePrefixLength uint8
	ScopePrefixLength  uint8
	Address            netip.Addr
}

// NewOption returns a request option for addr masked to length.
func NewOption(addr netip.Addr, length int) (Option, error) {
	f := prefix.FamilyOf(addr)
	masked, err := prefix.Mask(addr, f, length)
	if err != nil {
		return Option{}, err
	}
	return Option{
		Family:             f,
		SourcePrefixLength: uint8(length),
		Address:            masked,
	}, nil
}

// Prefix returns the option address and source prefix length as a prefix.
func (o Option) Prefix() netip.Prefix {
	return netip.PrefixFrom(o.Address, int(o.SourcePrefixLength))
}

// String formats the option as address/source-prefix-length.
func (o Option) String() string {
	return fmt.Sprintf("%s/%d", o.Address, o.SourcePrefixLength)
}

func (o Option) check() error {
	if !o.Family.Valid() {
		return fmt.Errorf("%w: unknown family %d", ErrMalformedOption, uint16(o.Family))
	}
	if int(o.SourcePrefixLength) > o.Family.Bits() {
		return fmt.Errorf("%w: source prefix length %d exceeds %d", ErrMalformedOption, o.SourcePrefixLength, o.Family.Bits())
	}
	if int(o.ScopePrefixLength) > o.Family.Bits() {
		return fmt.Errorf("%w: scope prefix length %d exceeds %d", ErrMalformedOption, o.ScopePrefixLength, o.Family.Bits())
	}
	if !prefix.Belongs(o.Address, o.Family) {
		return fmt.Errorf("%w: address %s does not match %s", ErrMalformedOption, o.Address, o.Family)
	}
	return nil
}

// addressLen is the number of address octets on the wire for a source
// prefix length.
func addressLen(source uint8) int {
	return (int(source) + 7) / 8
}

// Encode returns the option data in wire format. The address is masked to
// the source prefix length and truncated to the significant octets.
func Encode(o Option) ([]byte, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	masked, err := prefix.Mask(o.Address, o.Family, int(o.SourcePrefixLength))
	if err != nil {
		return nil, err
	}
	n := addressLen(o.SourcePrefixLength)
	b := make([]byte, headerLen+n)
	binary.BigEndian.PutUint16(b[0:2], uint16(o.Family))
	b[2] = o.SourcePrefixLength
	b[3] = o.ScopePrefixLength
	copy(b[headerLen:], masked.AsSlice()[:n])
	return b, nil
}

// Decode parses option data in wire format.
func Decode(b []byte) (Option, error) {
	if len(b) < headerLen {
		return Option{}, fmt.Errorf("%w: %d octets is too short", ErrMalformedOption, len(b))
	}
	o := Option{
		Family:             prefix.Family(binary.BigEndian.Uint16(b[0:2])),
		SourcePrefixLength: b[2],
		ScopePrefixLength:  b[3],
	}
	if !o.Family.Valid() {
		return Option{}, fmt.Errorf("%w: unknown family %d", ErrMalformedOption, uint16(o.Family))
	}
	if int(o.SourcePrefixLength) > o.Family.Bits() {
		return Option{}, fmt.Errorf("%w: source prefix length %d exceeds %d", ErrMalformedOption, o.SourcePrefixLength, o.Family.Bits())
	}
	if int(o.ScopePrefixLength) > o.Family.Bits() {
		return Option{}, fmt.Errorf("%w: scope prefix length %d exceeds %d", ErrMalformedOption, o.ScopePrefixLength, o.Family.Bits())
	}
	raw := b[headerLen:]
	if len(raw) != addressLen(o.SourcePrefixLength) {
		return Option{}, fmt.Errorf("%w: %d address octets for source prefix length %d", ErrMalformedOption, len(raw), o.SourcePrefixLength)
	}
	full := make([]byte, o.Family.Bits()/8)
	copy(full, raw)
	addr, ok := netip.AddrFromSlice(full)
	if !ok {
		return Option{}, fmt.Errorf("%w: bad address", ErrMalformedOption)
	}
	masked, err := prefix.Mask(addr, o.Family, int(o.SourcePrefixLength))
	if err != nil {
		return Option{}, fmt.Errorf("%w: %v", ErrMalformedOption, err)
	}
	if masked != addr {
		return Option{}, fmt.Errorf("%w: address %s has bits set beyond /%d", ErrMalformedOption, addr, o.SourcePrefixLength)
	}
	o.Address = addr
	return o, nil
}
