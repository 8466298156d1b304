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
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/facebook/dns/ecsrecursor/metrics"
)

// listenUDP opens a UDP socket with conf.
func listenUDP(addr string, conf net.ListenConfig) (net.PacketConn, error) {
	return conf.ListenPacket(context.Background(), "udp", addr)
}

// listenTCP opens a TCP socket with conf and wraps it in a Monitor.
func listenTCP(addr string, conf net.ListenConfig, stats *metrics.Stats) (*Monitor, error) {
	l, err := conf.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewMonitor(l, monitorTCP, stats), nil
}

// reusePort sets a UNIX socket option that allows the listener to bind to a
// port that is already in use. The delegation of traffic to listeners is
// equally distributed via this method.
func reusePort(_, _ string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
