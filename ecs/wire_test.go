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
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packQuery(t *testing.T, options ...dns.EDNS0) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion("ecs-echo.example.", dns.TypeTXT)
	m.SetEdns0(DefaultUDPSize, false)
	m.IsEdns0().Option = append(m.IsEdns0().Option, options...)
	raw, err := m.Pack()
	require.NoError(t, err)
	return raw
}

func rawECS(data ...byte) *dns.EDNS0_LOCAL {
	return &dns.EDNS0_LOCAL{Code: OptionCode, Data: data}
}

func TestStripMalformed(t *testing.T) {
	testCases := []struct {
		name    string
		options []dns.EDNS0
		removed int
		want    string
		codes   []uint16
	}{
		{
			name:    "overlong address",
			options: []dns.EDNS0{rawECS(0, 1, 8, 0, 10, 0, 0, 0)},
			removed: 1,
		},
		{
			name:    "short address",
			options: []dns.EDNS0{rawECS(0, 1, 24, 0, 10)},
			removed: 1,
		},
		{
			name:    "unmasked address",
			options: []dns.EDNS0{rawECS(0, 1, 23, 0, 192, 0, 3)},
			removed: 1,
		},
		{
			name:    "other options kept",
			options: []dns.EDNS0{&dns.EDNS0_NSID{Code: dns.EDNS0NSID}, rawECS(0, 1, 24, 0, 10), &dns.EDNS0_COOKIE{Code: dns.EDNS0COOKIE, Cookie: "0102030405060708"}},
			removed: 1,
			codes:   []uint16{dns.EDNS0NSID, dns.EDNS0COOKIE},
		},
		{
			name:    "valid option kept",
			options: []dns.EDNS0{rawECS(0, 1, 24, 0, 192, 0, 2)},
			want:    "192.0.2.0/24",
			codes:   []uint16{dns.EDNS0SUBNET},
		},
		{
			name: "no options",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw := packQuery(t, tc.options...)
			size := len(raw)

			out, removed := StripMalformed(raw)
			require.Equal(t, tc.removed, removed)
			if removed == 0 {
				assert.Len(t, out, size, "message is untouched")
			}

			m := new(dns.Msg)
			require.NoError(t, m.Unpack(out))
			require.NotNil(t, m.IsEdns0())
			var codes []uint16
			for _, e := range m.IsEdns0().Option {
				codes = append(codes, e.Option())
			}
			assert.Equal(t, tc.codes, codes)

			o, err := FromMsg(m)
			require.NoError(t, err)
			if tc.want == "" {
				assert.Nil(t, o)
			} else {
				require.NotNil(t, o)
				assert.Equal(t, tc.want, o.String())
			}
		})
	}
}

func TestStripMalformedUnparsable(t *testing.T) {
	for _, raw := range [][]byte{nil, {0, 1, 2}, packQuery(t, rawECS(0, 1, 24, 0, 10))[:20]} {
		out, removed := StripMalformed(raw)
		assert.Equal(t, 0, removed)
		assert.Equal(t, raw, out)
	}

	m := new(dns.Msg)
	m.SetQuestion("ecs-echo.example.", dns.TypeTXT)
	raw, err := m.Pack()
	require.NoError(t, err)
	out, removed := StripMalformed(raw)
	assert.Equal(t, 0, removed, "no OPT record")
	assert.Equal(t, raw, out)
}

func TestFromMsgRawOption(t *testing.T) {
	m := new(dns.Msg)
	m.SetQuestion("ecs-echo.example.", dns.TypeTXT)
	m.SetEdns0(DefaultUDPSize, false)
	m.IsEdns0().Option = append(m.IsEdns0().Option, &dns.EDNS0_LOCAL{Code: 65001, Data: []byte{1}}, rawECS(0, 1, 8, 0, 10, 0, 0, 0))
	_, err := FromMsg(m)
	require.ErrorIs(t, err, ErrMalformedOption)

	m.IsEdns0().Option[1] = rawECS(0, 2, 32, 0, 0x20, 0x01, 0x0d, 0xb8)
	o, err := FromMsg(m)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::/32", o.String())
}
