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

// Package forward holds the table of zones whose queries are forwarded and
// the servers they are forwarded to.
package forward

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/coredns/coredns/plugin"
	"github.com/miekg/dns"
)

// DefaultPort is used for servers given without a port.
const DefaultPort = 53

// Zone is a forwarded zone.
type Zone struct {
	Name    string
	Servers []netip.AddrPort
	// Recurse sets RD on forwarded queries.
	Recurse bool
}

func (z *Zone) String() string {
	servers := make([]string, 0, len(z.Servers))
	for _, s := range z.Servers {
		servers = append(servers, s.String())
	}
	s := z.Name + "=" + strings.Join(servers, ";")
	if z.Recurse {
		s = "+" + s
	}
	return s
}

// Table maps zone names to forwarding targets.
type Table struct {
	zones map[string]*Zone
	names plugin.Zones
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{zones: make(map[string]*Zone)}
}

// Parse parses a comma separated list of zone=server[;server...] entries.
// Servers are addresses with an optional port, IPv6 addresses with a port
// being bracketed. An entry starting with "+" forwards with recursion
// desired; recurse sets it for every entry.
func Parse(s string, recurse bool) (*Table, error) {
	t := NewTable()
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		z, err := parseZone(entry, recurse)
		if err != nil {
			return nil, err
		}
		if err := t.Add(z); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parseZone(entry string, recurse bool) (*Zone, error) {
	if strings.HasPrefix(entry, "+") {
		recurse = true
		entry = entry[1:]
	}
	name, servers, ok := strings.Cut(entry, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return nil, fmt.Errorf("invalid forward zone %q: expected zone=server", entry)
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return nil, fmt.Errorf("invalid forward zone name %q", name)
	}
	z := &Zone{Name: plugin.Name(name).Normalize(), Recurse: recurse}
	for _, server := range strings.Split(servers, ";") {
		server = strings.TrimSpace(server)
		if server == "" {
			continue
		}
		ap, err := ParseServer(server)
		if err != nil {
			return nil, fmt.Errorf("invalid server for forward zone %q: %w", name, err)
		}
		z.Servers = append(z.Servers, ap)
	}
	if len(z.Servers) == 0 {
		return nil, fmt.Errorf("forward zone %q has no servers", name)
	}
	return z, nil
}

// ParseServer parses an address with an optional port.
func ParseServer(s string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
	}
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(addr.Unmap(), DefaultPort), nil
}

// Add adds z to the table. A zone can only be added once.
func (t *Table) Add(z *Zone) error {
	name := plugin.Name(z.Name).Normalize()
	if _, ok := t.zones[name]; ok {
		return fmt.Errorf("duplicate forward zone %q", name)
	}
	z.Name = name
	t.zones[name] = z
	t.names = append(t.names, name)
	return nil
}

// Merge adds every zone of o to t.
func (t *Table) Merge(o *Table) error {
	for _, z := range o.Zones() {
		if err := t.Add(z); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the most specific zone qname belongs to.
func (t *Table) Lookup(qname string) (*Zone, bool) {
	if t == nil {
		return nil, false
	}
	name := t.names.Matches(plugin.Name(qname).Normalize())
	if name == "" {
		return nil, false
	}
	return t.zones[name], true
}

// Len returns the number of zones.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.zones)
}

// Zones returns the zones sorted by name.
func (t *Table) Zones() []*Zone {
	if t == nil {
		return nil
	}
	zones := make([]*Zone, 0, len(t.zones))
	for _, z := range t.zones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })
	return zones
}
