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
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/facebook/dns/ecsrecursor/metrics"
)

// MonitorType is a transport protocol string (e.g., "tcp").
type MonitorType string

const (
	monitorTCP MonitorType = "tcp"
	monitorUDP MonitorType = "udp"
)

// Monitor is a net.Listener that counts accepted and closed connections.
type Monitor struct {
	net.Listener
	transportName MonitorType
	stats         *metrics.Stats
}

// NewMonitor creates a Monitor from a net.Listener.
func NewMonitor(l net.Listener, t MonitorType, s *metrics.Stats) *Monitor {
	if s == nil {
		s = metrics.NewStats()
	}
	m := &Monitor{Listener: l, transportName: t, stats: s}
	for _, method := range []string{"Accept", "Close", "Read"} {
		m.stats.ResetCounter(formatMonitorStatName(t, method))
	}
	return m
}

// Accept monitors net.Listener.Accept.
func (m *Monitor) Accept() (net.Conn, error) {
	conn, err := m.Listener.Accept()
	if err != nil {
		return nil, err
	}
	m.incStat("Accept")
	return conn, nil
}

// Close monitors net.Listener.Close.
func (m *Monitor) Close() error {
	if err := m.Listener.Close(); err != nil {
		return err
	}
	m.incStat("Close")
	return nil
}

func (m *Monitor) incStat(method string) {
	m.stats.IncrementCounter(formatMonitorStatName(m.transportName, method))
}

// formatMonitorStatName formats a counter name for Monitor.
func formatMonitorStatName(t MonitorType, method string) string {
	return fmt.Sprintf("%s_listener_%s_calls", t, method)
}

// monitoredReader counts the messages read by a server, usually equaling
// the number of DNS queries received.
type monitoredReader struct {
	dns.PacketConnReader
	t     MonitorType
	stats *metrics.Stats
}

// ReadTCP increments the read counter, then calls the wrapped reader.
func (v monitoredReader) ReadTCP(conn net.Conn, timeout time.Duration) ([]byte, error) {
	m, err := v.PacketConnReader.ReadTCP(conn, timeout)
	if err == nil {
		v.stats.IncrementCounter(formatMonitorStatName(v.t, "Read"))
	}
	return m, err
}

// ReadUDP increments the read counter, then calls the wrapped reader.
func (v monitoredReader) ReadUDP(conn *net.UDPConn, timeout time.Duration) ([]byte, *dns.SessionUDP, error) {
	m, s, err := v.PacketConnReader.ReadUDP(conn, timeout)
	if err == nil {
		v.stats.IncrementCounter(formatMonitorStatName(v.t, "Read"))
	}
	return m, s, err
}

// ReadPacketConn increments the read counter, then calls the wrapped reader.
func (v monitoredReader) ReadPacketConn(conn net.PacketConn, timeout time.Duration) ([]byte, net.Addr, error) {
	m, a, err := v.PacketConnReader.ReadPacketConn(conn, timeout)
	if err == nil {
		v.stats.IncrementCounter(formatMonitorStatName(v.t, "Read"))
	}
	return m, a, err
}

// newMonitoredReader returns a dns.DecorateReader counting reads for t.
// It composes with an already installed decorator.
func newMonitoredReader(t MonitorType, s *metrics.Stats, inner dns.DecorateReader) dns.DecorateReader {
	return func(r dns.Reader) dns.Reader {
		if inner != nil {
			r = inner(r)
		}
		return monitoredReader{PacketConnReader: r.(dns.PacketConnReader), t: t, stats: s}
	}
}
