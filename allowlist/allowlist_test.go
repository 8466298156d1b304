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

package allowlist

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	l, err := Parse(" ecs-echo.example , 192.0.2.0/24,2001:db8::1, Example.COM.")
	require.NoError(t, err)
	assert.Equal(t, []string{"ecs-echo.example.", "example.com."}, l.Names())
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("192.0.2.0/24"),
		netip.MustParsePrefix("2001:db8::1/128"),
	}, l.Networks())
	assert.Equal(t, "ecs-echo.example.,example.com.,192.0.2.0/24,2001:db8::1/128", l.String())
}

func TestParseEmpty(t *testing.T) {
	for _, s := range []string{"", " ", ",,"} {
		l, err := Parse(s)
		require.NoError(t, err)
		assert.True(t, l.Empty())
		assert.False(t, l.MatchesName("example.com."))
		assert.False(t, l.MatchesAddress(netip.MustParseAddr("192.0.2.1")))
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"192.0.2.0/33", "2001:db8::/129", "bad/entry", "a..b"} {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), s)
		})
	}
}

func TestMatchesName(t *testing.T) {
	l := New([]string{"ecs-echo.example", "Example.COM."}, nil)
	testCases := []struct {
		qname string
		want  bool
	}{
		{"ecs-echo.example.", true},
		{"ECS-ECHO.example.", true},
		{"ns1.ecs-echo.example.", true},
		{"ecs-echo.example", true},
		{"www.example.com.", true},
		{"example.com.", true},
		{"notecs-echo.example.", false},
		{"example.", false},
		{"example.org.", false},
		{".", false},
	}
	for _, tc := range testCases {
		t.Run(tc.qname, func(t *testing.T) {
			assert.Equal(t, tc.want, l.MatchesName(tc.qname))
		})
	}
}

func TestMatchesNameRoot(t *testing.T) {
	l, err := Parse(".")
	require.NoError(t, err)
	for _, q := range []string{".", "example.", "a.b.c.example.org.", "ecs-echo.example."} {
		assert.True(t, l.MatchesName(q), q)
	}
}

func TestMatchesAddress(t *testing.T) {
	l, err := Parse("192.0.2.0/24,127.0.0.1,2001:db8::/32")
	require.NoError(t, err)
	testCases := []struct {
		addr string
		want bool
	}{
		{"192.0.2.1", true},
		{"192.0.2.255", true},
		{"192.0.3.1", false},
		{"127.0.0.1", true},
		{"127.0.0.2", false},
		{"::ffff:127.0.0.1", true},
		{"2001:db8:1::53", true},
		{"2001:db9::53", false},
	}
	for _, tc := range testCases {
		t.Run(tc.addr, func(t *testing.T) {
			assert.Equal(t, tc.want, l.MatchesAddress(netip.MustParseAddr(tc.addr)))
		})
	}
	assert.False(t, l.MatchesAddress(netip.Addr{}))
}

func TestMatchersIndependent(t *testing.T) {
	l, err := Parse("192.0.2.1")
	require.NoError(t, err)
	assert.False(t, l.MatchesName("ecs-echo.example."))
	assert.True(t, l.MatchesAddress(netip.MustParseAddr("192.0.2.1")))

	l, err = Parse("ecs-echo.example")
	require.NoError(t, err)
	assert.True(t, l.MatchesName("ecs-echo.example."))
	assert.False(t, l.MatchesAddress(netip.MustParseAddr("192.0.2.1")))
}

func TestNilList(t *testing.T) {
	var l *List
	assert.True(t, l.Empty())
	assert.False(t, l.MatchesName("example.com."))
	assert.False(t, l.MatchesAddress(netip.MustParseAddr("192.0.2.1")))
	assert.Equal(t, "", l.String())
}

func TestConcurrentMatch(t *testing.T) {
	l, err := Parse("ecs-echo.example,192.0.2.0/24")
	require.NoError(t, err)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				assert.True(t, l.MatchesName("ecs-echo.example."))
				assert.True(t, l.MatchesAddress(netip.MustParseAddr("192.0.2.7")))
			}
		}()
	}
	wg.Wait()
}
