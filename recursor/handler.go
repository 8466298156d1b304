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

// Package recursor serves client queries by forwarding them to the servers
// of the matching forward zone, with the ECS option chosen by the policy.
package recursor

import (
	"context"
	"fmt"
	"time"

	"github.com/coredns/coredns/plugin/pkg/edns"
	"github.com/coredns/coredns/request"
	"github.com/golang/glog"
	"github.com/miekg/dns"

	"github.com/facebook/dns/ecsrecursor/dispatch"
	"github.com/facebook/dns/ecsrecursor/ecs"
	"github.com/facebook/dns/ecsrecursor/forward"
	"github.com/facebook/dns/ecsrecursor/logger"
	"github.com/facebook/dns/ecsrecursor/policy"
	"github.com/facebook/dns/ecsrecursor/stats"
)

// TypeToStatsPrefix is the prefix used for creating per query type stats keys
const TypeToStatsPrefix = "DNS_query"

// Stats keys
const (
	StatQueries           = "DNS_queries"
	StatNXDomain          = "DNS_queries_nxdomain"
	StatRefused           = "DNS_queries_refused"
	StatServFail          = "DNS_queries_servfail"
	StatBadVers           = "DNS_queries_badvers"
	StatNoData            = "DNS_queries_nodata"
	StatInboundECS        = "ecs.inbound"
	StatInboundMalformed  = "ecs.inbound.malformed"
	StatAttached          = "ecs.attached"
	StatAttachedClient    = "ecs.attached.client"
	StatAttachedResolver  = "ecs.attached.resolver"
	StatNotAttached       = "ecs.not_attached"
	StatNoZone            = "forward.no_zone"
	StatUpstreamError     = "forward.upstream_error"
	StatUpstreamLatencyUs = "forward.latency_us"
)

var typeToStats = make(map[uint16]string)

func init() {
	for k, v := range dns.TypeToString {
		typeToStats[k] = fmt.Sprintf("%s.%s", TypeToStatsPrefix, v)
	}
}

func typeToStatsKey(qtype uint16) string {
	if t, ok := typeToStats[qtype]; ok {
		return t
	}
	return fmt.Sprintf("%s.TYPE%d", TypeToStatsPrefix, qtype)
}

// Handler forwards queries to the servers of their forward zone.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	forwarders *forward.Table
	stats      stats.Stats
	logger     logger.Logger
}

// NewHandler returns a Handler. Nil stats and logger discard their input.
func NewHandler(d *dispatch.Dispatcher, t *forward.Table, s stats.Stats, l logger.Logger) *Handler {
	if s == nil {
		s = &stats.DummyStats{}
	}
	if l == nil {
		l = &logger.DummyLogger{}
	}
	return &Handler{dispatcher: d, forwarders: t, stats: s, logger: l}
}

// Name implements the plugin.Handler interface.
func (h *Handler) Name() string { return "recursor" }

// ServeDNS implements the plugin.Handler interface.
func (h *Handler) ServeDNS(ctx context.Context, w dns.ResponseWriter, r *dns.Msg) (int, error) {
	start := time.Now()
	state := request.Request{W: w, Req: r}
	h.stats.IncrementCounter(StatQueries)

	if len(r.Question) == 0 {
		return h.fail(state, dns.RcodeFormatError, logger.Entry{}, start)
	}
	h.stats.IncrementCounter(typeToStatsKey(state.QType()))
	if a, err := edns.Version(r); err != nil {
		return h.writeAndLog(state, a, logger.Entry{}, start)
	}

	inbound, err := ecs.FromMsg(r)
	if err != nil {
		h.stats.IncrementCounter(StatInboundMalformed)
		glog.V(2).Infof("ignoring ECS from %s: %v", state.IP(), err)
		inbound = nil
	} else if inbound != nil {
		h.stats.IncrementCounter(StatInboundECS)
	}
	e := logger.Entry{Inbound: inbound}

	zone, ok := h.forwarders.Lookup(state.Name())
	if !ok {
		h.stats.IncrementCounter(StatNoZone)
		return h.fail(state, dns.RcodeServerFailure, e, start)
	}

	resp, err := h.forward(ctx, state, zone, &e)
	if err != nil {
		glog.Errorf("forwarding %s %s: %v", state.Name(), state.Type(), err)
		return h.fail(state, dns.RcodeServerFailure, e, start)
	}
	return h.writeAndLog(state, h.reply(r, resp, inbound), e, start)
}

// forward tries the servers of zone in order until one answers. e receives
// the server and the ECS decision of the last attempt, and only that
// decision is counted, once per client query.
func (h *Handler) forward(ctx context.Context, state request.Request, zone *forward.Zone, e *logger.Entry) (*dns.Msg, error) {
	q := new(dns.Msg)
	q.SetQuestion(state.Req.Question[0].Name, state.QType())
	q.Question[0].Qclass = state.QClass()
	q.RecursionDesired = zone.Recurse
	q.CheckingDisabled = state.Req.CheckingDisabled
	q.SetEdns0(ecs.DefaultUDPSize, state.Do())

	var lastErr error
	for _, server := range zone.Servers {
		sent := time.Now()
		resp, decision, err := h.dispatcher.Exchange(ctx, q, server, e.Inbound)
		e.Upstream = server
		e.Decision = decision
		if err != nil {
			h.stats.IncrementCounter(StatUpstreamError)
			glog.V(1).Infof("%s did not answer %s: %v", server, state.Name(), err)
			lastErr = err
			continue
		}
		h.stats.AddSample(StatUpstreamLatencyUs, time.Since(sent).Microseconds())
		h.countDecision(decision)
		return resp, nil
	}
	if len(zone.Servers) > 0 {
		h.countDecision(e.Decision)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("zone %s has no servers", zone.Name)
	}
	return nil, lastErr
}

func (h *Handler) countDecision(d policy.Decision) {
	if !d.Attach {
		h.stats.IncrementCounter(StatNotAttached)
		return
	}
	h.stats.IncrementCounter(StatAttached)
	switch d.Origin {
	case policy.OriginClient:
		h.stats.IncrementCounter(StatAttachedClient)
	case policy.OriginResolver:
		h.stats.IncrementCounter(StatAttachedResolver)
	}
}

// reply builds the answer to r from the upstream response. Upstream EDNS
// options are not passed on; a client that sent ECS gets its own option
// back with a scope of 0.
func (h *Handler) reply(r, resp *dns.Msg, inbound *ecs.Option) *dns.Msg {
	m := new(dns.Msg)
	m.SetReply(r)
	m.RecursionAvailable = true
	m.Truncated = resp.Truncated
	m.AuthenticatedData = resp.AuthenticatedData
	m.Rcode = resp.Rcode
	m.Answer = resp.Answer
	m.Ns = resp.Ns
	for _, rr := range resp.Extra {
		if rr.Header().Rrtype != dns.TypeOPT {
			m.Extra = append(m.Extra, rr)
		}
	}
	if inbound != nil {
		echo := *inbound
		echo.ScopePrefixLength = 0
		ecs.Attach(m, echo)
	}
	if m.Rcode > 0xF && r.IsEdns0() == nil {
		// extended rcodes need an OPT record the client can not receive
		m.Rcode = dns.RcodeServerFailure
	}
	return m
}

func (h *Handler) fail(state request.Request, rcode int, e logger.Entry, start time.Time) (int, error) {
	m := new(dns.Msg)
	m.SetRcode(state.Req, rcode)
	m.RecursionAvailable = true
	state.SizeAndDo(m)
	if err := state.W.WriteMsg(m); err != nil {
		return dns.RcodeServerFailure, err
	}
	e.Duration = time.Since(start)
	h.logger.LogFailed(state, e)
	h.countRcode(m)
	return rcode, nil
}

// writeAndLog writes the response to the network as well as log and bump stats
func (h *Handler) writeAndLog(state request.Request, resp *dns.Msg, e logger.Entry, start time.Time) (int, error) {
	rcode := resp.Rcode

	state.SizeAndDo(resp)
	state.Scrub(resp)

	if err := state.W.WriteMsg(resp); err != nil {
		return dns.RcodeServerFailure, err
	}
	e.Duration = time.Since(start)
	h.logger.Log(state, resp, e)
	h.countRcode(resp)
	return rcode, nil
}

func (h *Handler) countRcode(resp *dns.Msg) {
	switch {
	case resp.Rcode == dns.RcodeNameError:
		h.stats.IncrementCounter(StatNXDomain)
	case resp.Rcode == dns.RcodeRefused:
		h.stats.IncrementCounter(StatRefused)
	case resp.Rcode == dns.RcodeServerFailure:
		h.stats.IncrementCounter(StatServFail)
	case resp.Rcode == dns.RcodeBadVers:
		h.stats.IncrementCounter(StatBadVers)
	case resp.Rcode == dns.RcodeSuccess && len(resp.Answer) == 0:
		h.stats.IncrementCounter(StatNoData)
	}
}
