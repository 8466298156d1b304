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

// Package ecsecho implements a responder that reports the ECS option it
// received, used to observe what a resolver sends upstream.
package ecsecho

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/coredns/coredns/plugin"
	"github.com/coredns/coredns/request"
	"github.com/miekg/dns"

	"github.com/facebook/dns/ecsrecursor/ecs"
)

// NoECSText is the answer given when a query carries no ECS option.
const NoECSText = "No ECS received"

// TTLs of the answers
const (
	TTL     = 60
	GlueTTL = 15
)

// Handler answers TXT queries for the probe name with the ECS option of
// the query, and NS queries with a single name server and its glue.
type Handler struct {
	probe string
	ns    string
	glue  []netip.Addr
	Next  plugin.Handler
}

// NewHandler returns a Handler for probe. glue holds the addresses of the
// probe's name server; the address a query was received on is used when
// it is empty.
func NewHandler(probe string, glue ...netip.Addr) *Handler {
	h := &Handler{
		probe: plugin.Name(probe).Normalize(),
		glue:  glue,
	}
	h.ns = "ns1." + h.probe
	return h
}

// Probe returns the name answered for.
func (h *Handler) Probe() string { return h.probe }

// Text returns the TXT answer for o.
func Text(o *ecs.Option) string {
	if o == nil {
		return NoECSText
	}
	return o.String()
}

// received returns the TXT answer for the ECS option of r. An option that
// does not validate is reported as it arrived, unmasked bits included.
func received(r *dns.Msg) string {
	o, err := ecs.FromMsg(r)
	if err == nil {
		return Text(o)
	}
	if e := ecs.Find(r); e != nil {
		addr := e.Address
		if v4 := addr.To4(); v4 != nil && e.Family == 1 {
			addr = v4
		}
		return fmt.Sprintf("%s/%d", addr, e.SourceNetmask)
	}
	return NoECSText
}

// ServeDNS implements plugin.Handler.
func (h *Handler) ServeDNS(ctx context.Context, w dns.ResponseWriter, r *dns.Msg) (int, error) {
	state := request.Request{W: w, Req: r}
	qname := state.Name()
	if qname != h.probe && qname != h.ns {
		return plugin.NextOrFailure(h.Name(), h.Next, ctx, w, r)
	}

	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	switch {
	case qname == h.probe && state.QType() == dns.TypeTXT:
		m.Answer = append(m.Answer, &dns.TXT{
			Hdr: dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: TTL},
			Txt: []string{received(r)},
		})
	case qname == h.probe && state.QType() == dns.TypeNS:
		m.Answer = append(m.Answer, &dns.NS{
			Hdr: dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: TTL},
			Ns:  h.ns,
		})
		m.Extra = append(m.Extra, h.glueRecords(w, 0)...)
	case qname == h.ns:
		m.Answer = append(m.Answer, h.glueRecords(w, state.QType())...)
	}

	state.SizeAndDo(m)
	m = state.Scrub(m)
	if err := w.WriteMsg(m); err != nil {
		return dns.RcodeServerFailure, err
	}
	return dns.RcodeSuccess, nil
}

// glueRecords returns the A and AAAA records of the name server, limited to
// qtype unless it is 0.
func (h *Handler) glueRecords(w dns.ResponseWriter, qtype uint16) []dns.RR {
	addrs := h.glue
	if len(addrs) == 0 {
		if a, ok := w.LocalAddr().(*net.UDPAddr); ok {
			addrs = []netip.Addr{a.AddrPort().Addr().Unmap()}
		} else if a, ok := w.LocalAddr().(*net.TCPAddr); ok {
			addrs = []netip.Addr{a.AddrPort().Addr().Unmap()}
		}
	}
	var rrs []dns.RR
	for _, addr := range addrs {
		addr = addr.Unmap()
		if addr.Is4() && (qtype == 0 || qtype == dns.TypeA) {
			rrs = append(rrs, &dns.A{
				Hdr: dns.RR_Header{Name: h.ns, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: GlueTTL},
				A:   addr.AsSlice(),
			})
		}
		if addr.Is6() && (qtype == 0 || qtype == dns.TypeAAAA) {
			rrs = append(rrs, &dns.AAAA{
				Hdr:  dns.RR_Header{Name: h.ns, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: GlueTTL},
				AAAA: addr.AsSlice(),
			})
		}
	}
	return rrs
}

// Name implements plugin.Handler.
func (h *Handler) Name() string { return "ecsecho" }
