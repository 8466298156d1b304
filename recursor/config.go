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
	"net/netip"
	"strings"
	"time"

	"github.com/facebook/dns/ecsrecursor/forward"
	"github.com/facebook/dns/ecsrecursor/policy"
)

// Defaults for ServerConfig
const (
	DefaultPort            = 53
	DefaultReadTimeout     = 2 * time.Second
	DefaultUpstreamTimeout = 1500 * time.Millisecond
)

// ServerConfig represent the configuration for the client facing servers
type ServerConfig struct {
	// IPs to listen on. The wildcard address is used when empty.
	IPs            []netip.Addr
	Port           int
	TCP            bool
	ReusePort      int
	ReadTimeout    time.Duration
	MaxConcurrency int
	// UpstreamTimeout bounds each exchange with a forwarder.
	UpstreamTimeout time.Duration
	// QueryLocalAddress is the address upstream queries are sent from.
	QueryLocalAddress netip.Addr
	ECS               *policy.Config
	Forwarders        *forward.Table
	// NSID answers the name server identifier option with ServerID, or
	// with the host name when ServerID is empty.
	NSID     bool
	ServerID string
}

// NewServerConfig returns a configuration with default values.
func NewServerConfig() ServerConfig {
	return ServerConfig{
		Port:            DefaultPort,
		ReadTimeout:     DefaultReadTimeout,
		UpstreamTimeout: DefaultUpstreamTimeout,
		ECS:             policy.DefaultConfig(),
		Forwarders:      forward.NewTable(),
	}
}

// Validate checks the configuration is usable.
func (c ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ReusePort < 0 {
		return fmt.Errorf("invalid number of reuseport listeners %d", c.ReusePort)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("invalid max concurrency %d", c.MaxConcurrency)
	}
	if c.ECS == nil {
		return fmt.Errorf("missing ECS configuration")
	}
	if err := c.ECS.Validate(); err != nil {
		return err
	}
	if c.Forwarders.Len() == 0 {
		return fmt.Errorf("no forward zones configured")
	}
	return nil
}

func (c ServerConfig) String() string {
	ips := make([]string, 0, len(c.IPs))
	for _, ip := range c.IPs {
		ips = append(ips, ip.String())
	}
	return fmt.Sprintf("ips=[%s] port=%d tcp=%v reuseport=%d zones=%d", strings.Join(ips, ","), c.Port, c.TCP, c.ReusePort, c.Forwarders.Len())
}
