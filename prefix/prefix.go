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

// Package prefix maps an address and a bit length to its canonical masked
// form for both address families.
package prefix

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Family is an IANA address family number, as carried in the ECS option.
type Family uint16

const (
	// Unknown is returned for invalid addresses.
	Unknown Family = 0
	// IPv4 address family.
	IPv4 Family = 1
	// IPv6 address family.
	IPv6 Family = 2
)

// ErrInvalidPrefixLength is returned when a prefix length does not fit the
// address family.
var ErrInvalidPrefixLength = errors.New("invalid prefix length")

func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("family(%d)", uint16(f))
	}
}

// Bits returns the address width of the family, or 0 if unknown.
func (f Family) Bits() int {
	switch f {
	case IPv4:
		return 32
	case IPv6:
		return 128
	default:
		return 0
	}
}

// Valid reports whether f is IPv4 or IPv6.
func (f Family) Valid() bool {
	return f == IPv4 || f == IPv6
}

// FamilyOf returns the family of addr. IPv4-mapped IPv6 addresses are IPv4.
func FamilyOf(addr netip.Addr) Family {
	switch {
	case !addr.IsValid():
		return Unknown
	case addr.Unmap().Is4():
		return IPv4
	default:
		return IPv6
	}
}

// Belongs reports whether addr can be carried as an address of family f.
// IPv4-mapped IPv6 addresses belong to both families.
func Belongs(addr netip.Addr, f Family) bool {
	switch f {
	case IPv4:
		return addr.Unmap().Is4()
	case IPv6:
		return addr.Is6()
	default:
		return false
	}
}

// CheckLength returns ErrInvalidPrefixLength unless length is in 0..f.Bits().
func CheckLength(f Family, length int) error {
	if !f.Valid() {
		return fmt.Errorf("%w: unknown %s", ErrInvalidPrefixLength, f)
	}
	if length < 0 || length > f.Bits() {
		return fmt.Errorf("%w: %d is out of range 0..%d for %s", ErrInvalidPrefixLength, length, f.Bits(), f)
	}
	return nil
}

// Mask zeroes every bit of addr beyond the first length bits.
func Mask(addr netip.Addr, f Family, length int) (netip.Addr, error) {
	if err := CheckLength(f, length); err != nil {
		return netip.Addr{}, err
	}
	if !Belongs(addr, f) {
		return netip.Addr{}, fmt.Errorf("%w: %s is not an %s address", ErrInvalidPrefixLength, addr, f)
	}
	if f == IPv4 {
		addr = addr.Unmap()
	}
	p, err := addr.Prefix(length)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", ErrInvalidPrefixLength, err)
	}
	return p.Addr(), nil
}

// WithinNetwork reports whether addr falls inside network/length. Addresses
// of different families never match.
func WithinNetwork(addr, network netip.Addr, length int) bool {
	f := FamilyOf(network)
	if FamilyOf(addr) != f {
		return false
	}
	a, err := Mask(addr, f, length)
	if err != nil {
		return false
	}
	n, err := Mask(network, f, length)
	if err != nil {
		return false
	}
	return a == n
}

// ParseNetwork parses a CIDR or a bare address. A bare address is a host
// route. The returned prefix is masked.
func ParseNetwork(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		if p.Addr().Is4In6() && p.Bits() >= 96 {
			p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Contains reports whether addr is inside p, unmapping IPv4-mapped addresses.
func Contains(p netip.Prefix, addr netip.Addr) bool {
	return WithinNetwork(addr, p.Addr(), p.Bits())
}
