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

// Package allowlist matches query names and addresses against the set of
// domains and networks ECS may be sent for.
package allowlist

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/coredns/coredns/plugin"
	"github.com/miekg/dns"

	"github.com/facebook/dns/ecsrecursor/prefix"
)

// List is an immutable set of domain suffixes and networks.
// Order does not matter and no entry takes precedence over another.
type List struct {
	names    plugin.Zones
	networks []netip.Prefix
}

// New builds a List. Names are normalized to lower case FQDNs.
func New(names []string, networks []netip.Prefix) *List {
	l := &List{}
	for _, n := range names {
		l.names = append(l.names, plugin.Name(n).Normalize())
	}
	for _, p := range networks {
		l.networks = append(l.networks, p.Masked())
	}
	return l
}

// Parse parses a comma separated list of domain names and networks. An entry
// that is an address or a CIDR is a network, a bare address being a host
// route. Anything else must be a valid domain name.
func Parse(s string) (*List, error) {
	var (
		names    []string
		networks []netip.Prefix
	)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := prefix.ParseNetwork(entry); err == nil {
			networks = append(networks, p)
			continue
		} else if strings.Contains(entry, "/") {
			return nil, fmt.Errorf("invalid network %q in allow-list: %w", entry, err)
		}
		if _, ok := dns.IsDomainName(entry); !ok {
			return nil, fmt.Errorf("invalid domain name %q in allow-list", entry)
		}
		names = append(names, entry)
	}
	return New(names, networks), nil
}

// MatchesName reports whether qname equals or is below one of the domain
// entries. Matching is case-insensitive and the root matches every name.
func (l *List) MatchesName(qname string) bool {
	if l == nil || len(l.names) == 0 {
		return false
	}
	return l.names.Matches(plugin.Name(qname).Normalize()) != ""
}

// MatchesAddress reports whether addr falls within one of the network entries.
func (l *List) MatchesAddress(addr netip.Addr) bool {
	if l == nil || !addr.IsValid() {
		return false
	}
	for _, p := range l.networks {
		if prefix.Contains(p, addr) {
			return true
		}
	}
	return false
}

// Empty reports whether the list has no entries.
func (l *List) Empty() bool {
	return l == nil || len(l.names) == 0 && len(l.networks) == 0
}

// Names returns a copy of the domain entries.
func (l *List) Names() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.names...)
}

// Networks returns a copy of the network entries.
func (l *List) Networks() []netip.Prefix {
	if l == nil {
		return nil
	}
	return append([]netip.Prefix(nil), l.networks...)
}

func (l *List) String() string {
	if l.Empty() {
		return ""
	}
	entries := make([]string, 0, len(l.names)+len(l.networks))
	entries = append(entries, l.names...)
	for _, p := range l.networks {
		entries = append(entries, p.String())
	}
	return strings.Join(entries, ",")
}
