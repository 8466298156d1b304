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

// Package policy decides, for each outbound query, whether an ECS option is
// attached and which address and prefix length it carries.
package policy

import (
	"fmt"
	"net/netip"

	"github.com/facebook/dns/ecsrecursor/allowlist"
	"github.com/facebook/dns/ecsrecursor/ecs"
	"github.com/facebook/dns/ecsrecursor/prefix"
)

// default source prefix lengths
const (
	DefaultIPv4Bits = 24
	DefaultIPv6Bits = 56
)

// Config is the process wide ECS policy. It is built once at startup and
// must not be modified afterwards; a single *Config is shared by every
// in-flight query.
type Config struct {
	AllowList      *allowlist.List
	UseIncomingECS bool
	IPv4Bits       int
	IPv6Bits       int
}

// NewConfig returns a validated Config.
func NewConfig(l *allowlist.List, useIncomingECS bool, ipv4Bits, ipv6Bits int) (*Config, error) {
	c := &Config{
		AllowList:      l,
		UseIncomingECS: useIncomingECS,
		IPv4Bits:       ipv4Bits,
		IPv6Bits:       ipv6Bits,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultConfig returns a Config with an empty allow-list and default bits.
func DefaultConfig() *Config {
	return &Config{
		AllowList: allowlist.New(nil, nil),
		IPv4Bits:  DefaultIPv4Bits,
		IPv6Bits:  DefaultIPv6Bits,
	}
}

// Validate checks the per-family prefix lengths.
func (c *Config) Validate() error {
	if err := prefix.CheckLength(prefix.IPv4, c.IPv4Bits); err != nil {
		return fmt.Errorf("ecs-ipv4-bits: %w", err)
	}
	if err := prefix.CheckLength(prefix.IPv6, c.IPv6Bits); err != nil {
		return fmt.Errorf("ecs-ipv6-bits: %w", err)
	}
	return nil
}

// Bits returns the configured source prefix length for f.
func (c *Config) Bits(f prefix.Family) int {
	if f == prefix.IPv6 {
		return c.IPv6Bits
	}
	return c.IPv4Bits
}

// Eligible reports whether ECS may be sent for a query to server for name.
func (c *Config) Eligible(name string, server netip.Addr) bool {
	return c.AllowList.MatchesName(name) || c.AllowList.MatchesAddress(server)
}

// Query holds the per-query inputs of a decision.
type Query struct {
	// Name is the outbound query name.
	Name string
	// Server is the address the outbound query is sent to.
	Server netip.Addr
	// Source is the resolver's own address on the socket used for the query.
	Source netip.Addr
	// Inbound is the client's ECS option, nil when the client sent none.
	Inbound *ecs.Option
}

// Origin tells where the address of a decision came from.
type Origin int

// Origin values
const (
	OriginNone Origin = iota
	OriginResolver
	OriginClient
)

func (o Origin) String() string {
	switch o {
	case OriginResolver:
		return "resolver"
	case OriginClient:
		return "client"
	default:
		return "none"
	}
}

// Decision is the outcome of Decide for one outbound query.
type Decision struct {
	Attach       bool
	Address      netip.Addr
	PrefixLength int
	Origin       Origin
}

// Option returns the request option for an attaching decision.
func (d Decision) Option() ecs.Option {
	return ecs.Option{
		Family:             prefix.FamilyOf(d.Address),
		SourcePrefixLength: uint8(d.PrefixLength),
		Address:            d.Address,
	}
}

func (d Decision) String() string {
	if !d.Attach {
		return "no ECS"
	}
	return fmt.Sprintf("%s/%d (%s)", d.Address, d.PrefixLength, d.Origin)
}

// Decide returns the ECS decision for q. It performs no I/O and only reads
// cfg. Whenever a valid option cannot be built the decision is not to attach.
func Decide(q Query, cfg *Config) Decision {
	if cfg == nil || !cfg.Eligible(q.Name, q.Server) {
		return Decision{}
	}
	candidate, origin := q.Source, OriginResolver
	if cfg.UseIncomingECS && q.Inbound != nil {
		candidate, origin = q.Inbound.Address, OriginClient
	}
	f := prefix.FamilyOf(candidate)
	if !f.Valid() {
		return Decision{}
	}
	bits := cfg.Bits(f)
	if origin == OriginClient && int(q.Inbound.SourcePrefixLength) < bits {
		// never claim more of the client address than the client revealed
		bits = int(q.Inbound.SourcePrefixLength)
	}
	masked, err := prefix.Mask(candidate, f, bits)
	if err != nil {
		return Decision{}
	}
	return Decision{
		Attach:       true,
		Address:      masked,
		PrefixLength: bits,
		Origin:       origin,
	}
}
