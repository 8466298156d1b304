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

// Package logger records client responses together with the ECS decision
// taken for their upstream query.
package logger

import (
	"fmt"
	"io"
	"net/netip"
	"strings"
	"time"

	"github.com/coredns/coredns/request"
	"github.com/miekg/dns"

	"github.com/facebook/dns/ecsrecursor/ecs"
	"github.com/facebook/dns/ecsrecursor/policy"
)

// Entry is what the query path knows about a query besides the messages.
type Entry struct {
	// Inbound is the client's ECS option, nil when it sent none.
	Inbound *ecs.Option
	// Decision is the ECS outcome for the upstream query.
	Decision policy.Decision
	// Upstream is the server the query was forwarded to.
	Upstream netip.AddrPort
	// Duration is the time spent answering.
	Duration time.Duration
}

// Logger is an interface for logging messages
type Logger interface {
	// Log logs a DNS response
	Log(state request.Request, r *dns.Msg, e Entry)
	// LogFailed logs a message when we could not construct an answer
	LogFailed(state request.Request, e Entry)
}

// RequestProtocol returns the transport of the query, UDP or TCP.
func RequestProtocol(state request.Request) string {
	return strings.ToUpper(state.Proto())
}

// CollectDNSFlags returns a space-separated string with all flags set in the DNS message header
// This is similar to dig's output but uppercase.
func CollectDNSFlags(r *dns.Msg) string {
	flagNames := []string{}
	if r.Response {
		flagNames = append(flagNames, "QR")
	}
	if r.Authoritative {
		flagNames = append(flagNames, "AA")
	}
	if r.Truncated {
		flagNames = append(flagNames, "TC")
	}
	if r.RecursionDesired {
		flagNames = append(flagNames, "RD")
	}
	if r.RecursionAvailable {
		flagNames = append(flagNames, "RA")
	}
	if r.Zero {
		flagNames = append(flagNames, "Z")
	}
	if r.AuthenticatedData {
		flagNames = append(flagNames, "AD")
	}
	if r.CheckingDisabled {
		flagNames = append(flagNames, "CD")
	}
	return strings.Join(flagNames, " ")
}

// TextLogger logs to an io.Writer
type TextLogger struct {
	IoWriter io.Writer
}

// Log is used to log to an ioWriter.
func (l *TextLogger) Log(state request.Request, r *dns.Msg, e Entry) {
	inbound := "-"
	if e.Inbound != nil {
		inbound = e.Inbound.String()
	}
	upstream := "-"
	if e.Upstream.IsValid() {
		upstream = e.Upstream.String()
	}
	fmt.Fprintf(l.IoWriter, "[%s] %s %s %s %s [%s] client-ecs=%s upstream=%s ecs=%q %s\n",
		state.IP(), RequestProtocol(state),
		state.Name(), state.Type(), dns.RcodeToString[r.Rcode], CollectDNSFlags(r),
		inbound, upstream, e.Decision, e.Duration)
}

// LogFailed is used to log failures
func (l *TextLogger) LogFailed(state request.Request, e Entry) {
	m := new(dns.Msg)
	m.SetRcode(state.Req, dns.RcodeServerFailure)
	l.Log(state, m, e)
}

// DummyLogger logs nothing
type DummyLogger struct{}

// Log is used to log to an ioWriter.
func (l *DummyLogger) Log(_ request.Request, _ *dns.Msg, _ Entry) {
}

// LogFailed is used to log failures
func (l *DummyLogger) LogFailed(_ request.Request, _ Entry) {
}
