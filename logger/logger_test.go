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

package logger

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/coredns/coredns/request"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/facebook/dns/ecsrecursor/ecs"
	"github.com/facebook/dns/ecsrecursor/policy"
	"github.com/facebook/dns/ecsrecursor/testaid"
)

func testState(name string) request.Request {
	req := new(dns.Msg)
	req.SetQuestion(name, dns.TypeTXT)
	return request.Request{W: &testaid.ResponseWriterCustomRemote{RemoteIP: "192.0.2.1"}, Req: req}
}

func TestTextLoggerLog(t *testing.T) {
	var buf bytes.Buffer
	l := &TextLogger{IoWriter: &buf}
	state := testState("ecs-echo.example.")
	inbound, err := ecs.NewOption(netip.MustParseAddr("192.0.2.1"), 32)
	require.NoError(t, err)

	resp := new(dns.Msg)
	resp.SetReply(state.Req)
	resp.RecursionAvailable = true
	l.Log(state, resp, Entry{
		Inbound:  &inbound,
		Decision: policy.Decision{Attach: true, Address: netip.MustParseAddr("192.0.2.0"), PrefixLength: 24, Origin: policy.OriginClient},
		Upstream: netip.MustParseAddrPort("127.0.0.21:53"),
		Duration: 3 * time.Millisecond,
	})
	require.Equal(t,
		"[192.0.2.1] UDP ecs-echo.example. TXT NOERROR [QR RD RA] client-ecs=192.0.2.1/32 upstream=127.0.0.21:53 ecs=\"192.0.2.0/24 (client)\" 3ms\n",
		buf.String())
}

func TestTextLoggerLogFailed(t *testing.T) {
	var buf bytes.Buffer
	l := &TextLogger{IoWriter: &buf}
	l.LogFailed(testState("example.org."), Entry{})
	require.Equal(t, "[192.0.2.1] UDP example.org. TXT SERVFAIL [QR RD] client-ecs=- upstream=- ecs=\"no ECS\" 0s\n", buf.String())
}

func TestCollectDNSFlags(t *testing.T) {
	m := new(dns.Msg)
	require.Equal(t, "", CollectDNSFlags(m))

	m.Response = true
	require.Contains(t, CollectDNSFlags(m), "QR")

	m.Authoritative = true
	require.Contains(t, CollectDNSFlags(m), "AA")

	m.Truncated = true
	require.Contains(t, CollectDNSFlags(m), "TC")

	m.RecursionDesired = true
	require.Contains(t, CollectDNSFlags(m), "RD")

	m.RecursionAvailable = true
	require.Contains(t, CollectDNSFlags(m), "RA")

	m.Zero = true
	require.Contains(t, CollectDNSFlags(m), "Z")

	m.AuthenticatedData = true
	require.Contains(t, CollectDNSFlags(m), "AD")

	m.CheckingDisabled = true
	require.Contains(t, CollectDNSFlags(m), "CD")

	flagsBefore := CollectDNSFlags(m)
	m.Opcode = 5
	m.Rcode = 3
	require.Equal(t, flagsBefore, CollectDNSFlags(m))
}

func TestRequestProtocol(t *testing.T) {
	state := testState("example.org.")
	require.Equal(t, "UDP", RequestProtocol(state))
	state.W = &testaid.ResponseWriter{}
	state.W.(*testaid.ResponseWriter).TCP = true
	require.Equal(t, "TCP", RequestProtocol(state))
}
