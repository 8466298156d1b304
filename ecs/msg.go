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
	"fmt"
	"net/netip"

	"github.com/miekg/dns"

	"github.com/facebook/dns/ecsrecursor/prefix"
)

// DefaultUDPSize is advertised when an OPT record has to be created to carry
// the option.
const DefaultUDPSize = 1232

// EDNS0 converts o into a miekg/dns option.
func (o Option) EDNS0() *dns.EDNS0_SUBNET {
	return &dns.EDNS0_SUBNET{
		Code:          dns.EDNS0SUBNET,
		Family:        uint16(o.Family),
		SourceNetmask: o.SourcePrefixLength,
		SourceScope:   o.ScopePrefixLength,
		Address:       o.Address.AsSlice(),
	}
}

// FromEDNS0 validates a miekg/dns option and converts it into an Option.
// Any violation of the wire rules is reported as ErrMalformedOption.
func FromEDNS0(e *dns.EDNS0_SUBNET) (Option, error) {
	if e == nil {
		return Option{}, fmt.Errorf("%w: nil option", ErrMalformedOption)
	}
	o := Option{
		Family:             prefix.Family(e.Family),
		SourcePrefixLength: e.SourceNetmask,
		ScopePrefixLength:  e.SourceScope,
	}
	ip := e.Address
	if o.Family == prefix.IPv4 {
		ip = ip.To4()
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return Option{}, fmt.Errorf("%w: bad address %v", ErrMalformedOption, e.Address)
	}
	o.Address = addr
	if err := o.check(); err != nil {
		return Option{}, err
	}
	masked, err := prefix.Mask(addr, o.Family, int(o.SourcePrefixLength))
	if err != nil || masked != o.Address {
		return Option{}, fmt.Errorf("%w: address %s has bits set beyond /%d", ErrMalformedOption, o.Address, o.SourcePrefixLength)
	}
	return o, nil
}

// Find finds a EDNS0_SUBNET option in a DNS Msg.
// It returns nil when there is no such EDNS0 option.
func Find(m *dns.Msg) *dns.EDNS0_SUBNET {
	if o := m.IsEdns0(); o != nil {
		for _, opt := range o.Option {
			if opt, ok := opt.(*dns.EDNS0_SUBNET); ok {
				return opt
			}
		}
	}
	return nil
}

// FromMsg returns the validated ECS option carried by m, or nil when m
// carries none. Option data kept raw as an EDNS0_LOCAL with the ECS code
// goes through Decode.
func FromMsg(m *dns.Msg) (*Option, error) {
	opt := m.IsEdns0()
	if opt == nil {
		return nil, nil
	}
	for _, e := range opt.Option {
		var (
			o   Option
			err error
		)
		switch e := e.(type) {
		case *dns.EDNS0_SUBNET:
			o, err = FromEDNS0(e)
		case *dns.EDNS0_LOCAL:
			if e.Code != OptionCode {
				continue
			}
			o, err = Decode(e.Data)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		return &o, nil
	}
	return nil, nil
}

// Attach sets o as the only ECS option of m, creating the OPT record if m
// has none.
func Attach(m *dns.Msg, o Option) {
	opt := m.IsEdns0()
	if opt == nil {
		m.SetEdns0(DefaultUDPSize, false)
		opt = m.IsEdns0()
	}
	Remove(m)
	opt.Option = append(opt.Option, o.EDNS0())
}

// Remove drops every ECS option from m. It reports whether any was present.
func Remove(m *dns.Msg) bool {
	opt := m.IsEdns0()
	if opt == nil {
		return false
	}
	found := false
	kept := opt.Option[:0]
	for _, e := range opt.Option {
		if e.Option() == dns.EDNS0SUBNET {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	opt.Option = kept
	return found
}

// MakeOPTWithECS returns a dns.OPT carrying an ECS option for the subnet s,
// given in CIDR notation or as a bare address.
func MakeOPTWithECS(s string) (*dns.OPT, error) {
	p, err := prefix.ParseNetwork(s)
	if err != nil {
		return nil, err
	}
	o, err := NewOption(p.Addr(), p.Bits())
	if err != nil {
		return nil, err
	}
	opt := new(dns.OPT)
	opt.Hdr.Name = "."
	opt.Hdr.Rrtype = dns.TypeOPT
	opt.SetUDPSize(DefaultUDPSize)
	opt.Option = append(opt.Option, o.EDNS0())
	return opt, nil
}
