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

package recursor

import (
	"net"
	"time"

	"github.com/golang/glog"
	"github.com/miekg/dns"

	"github.com/facebook/dns/ecsrecursor/ecs"
	"github.com/facebook/dns/ecsrecursor/stats"
)

// ecsGuardReader drops malformed ECS options from queries before they are
// unpacked, counting each one as StatInboundMalformed. The query itself is
// still served.
type ecsGuardReader struct {
	dns.PacketConnReader
	stats stats.Stats
}

func (v ecsGuardReader) strip(m []byte) []byte {
	m, n := ecs.StripMalformed(m)
	if n > 0 {
		v.stats.IncrementCounterBy(StatInboundMalformed, int64(n))
		glog.V(2).Infof("dropped %d malformed ECS option(s)", n)
	}
	return m
}

// ReadTCP implements dns.Reader.
func (v ecsGuardReader) ReadTCP(conn net.Conn, timeout time.Duration) ([]byte, error) {
	m, err := v.PacketConnReader.ReadTCP(conn, timeout)
	if err != nil {
		return m, err
	}
	return v.strip(m), nil
}

// ReadUDP implements dns.Reader.
func (v ecsGuardReader) ReadUDP(conn *net.UDPConn, timeout time.Duration) ([]byte, *dns.SessionUDP, error) {
	m, s, err := v.PacketConnReader.ReadUDP(conn, timeout)
	if err != nil {
		return m, s, err
	}
	return v.strip(m), s, nil
}

// ReadPacketConn implements dns.PacketConnReader.
func (v ecsGuardReader) ReadPacketConn(conn net.PacketConn, timeout time.Duration) ([]byte, net.Addr, error) {
	m, a, err := v.PacketConnReader.ReadPacketConn(conn, timeout)
	if err != nil {
		return m, a, err
	}
	return v.strip(m), a, nil
}

// newECSGuardReader returns a dns.DecorateReader wrapping inner with an
// ecsGuardReader.
func newECSGuardReader(s stats.Stats, inner dns.DecorateReader) dns.DecorateReader {
	return func(r dns.Reader) dns.Reader {
		if inner != nil {
			r = inner(r)
		}
		return ecsGuardReader{PacketConnReader: r.(dns.PacketConnReader), stats: s}
	}
}
