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

package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/ratelimit"
	"gonum.org/v1/gonum/stat"

	"github.com/facebook/dns/ecsrecursor/ecs"
)

// prober sends the probe query and tallies the answers.
type prober struct {
	client *dns.Client
	server string
	name   string
	subnet string
	rate   ratelimit.Limiter
}

// result counts the TXT answers seen, keyed by text.
type result struct {
	answers map[string]int
	errors  int
	// rtts holds the round trip time of each answered query, in ms.
	rtts []float64
}

func newResult() *result {
	return &result{answers: make(map[string]int)}
}

func (p *prober) query() (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(p.name), dns.TypeTXT)
	if p.subnet != "" {
		opt, err := ecs.MakeOPTWithECS(p.subnet)
		if err != nil {
			return nil, fmt.Errorf("invalid subnet %q: %w", p.subnet, err)
		}
		m.Extra = append(m.Extra, opt)
	} else {
		m.SetEdns0(ecs.DefaultUDPSize, false)
	}
	return m, nil
}

// run sends count queries, at most one per rate tick.
func (p *prober) run(count int) (*result, error) {
	q, err := p.query()
	if err != nil {
		return nil, err
	}
	res := newResult()
	for i := 0; i < count; i++ {
		p.rate.Take()
		q.Id = dns.Id()
		resp, rtt, err := p.client.Exchange(q, p.server)
		if err != nil {
			res.errors++
			continue
		}
		res.rtts = append(res.rtts, float64(rtt)/float64(time.Millisecond))
		res.answers[answerText(resp)]++
	}
	return res, nil
}

// answerText flattens the TXT answers of m, or describes m when it has none.
func answerText(m *dns.Msg) string {
	var texts []string
	for _, rr := range m.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			texts = append(texts, strings.Join(txt.Txt, ""))
		}
	}
	if len(texts) == 0 {
		return "rcode=" + dns.RcodeToString[m.Rcode]
	}
	return strings.Join(texts, " ")
}

func (r *result) String() string {
	keys := make([]string, 0, len(r.answers))
	for k := range r.answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	total := 0
	for _, k := range keys {
		fmt.Fprintf(&b, "%6d %s\n", r.answers[k], k)
		total += r.answers[k]
	}
	fmt.Fprintf(&b, "answered=%d errors=%d", total, r.errors)
	if len(r.rtts) > 0 {
		rtts := append([]float64(nil), r.rtts...)
		sort.Float64s(rtts)
		fmt.Fprintf(&b, " rtt-ms min=%.3f median=%.3f mean=%.3f max=%.3f",
			stat.Quantile(0.0, stat.Empirical, rtts, nil),
			stat.Quantile(0.5, stat.Empirical, rtts, nil),
			stat.Mean(rtts, nil),
			stat.Quantile(1.0, stat.Empirical, rtts, nil))
	}
	return b.String()
}
