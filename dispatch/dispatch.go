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

// Package dispatch sends outbound queries, asking the ECS policy for a
// decision on each one and attaching its outcome to the wire message.
package dispatch

//go:generate mockgen -source=dispatch.go -destination=mocks_test.go -package=dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/golang/glog"
	"github.com/miekg/dns"

	"github.com/facebook/dns/ecsrecursor/ecs"
	"github.com/facebook/dns/ecsrecursor/policy"
)

// DefaultTimeout bounds an exchange whose context has no deadline.
const DefaultTimeout = 2 * time.Second

// ErrNoQuestion is returned for queries without a question section.
var ErrNoQuestion = errors.New("query has no question")

// Conn is a connection to an upstream server. *dns.Conn implements it.
type Conn interface {
	LocalAddr() net.Addr
	SetDeadline(t time.Time) error
	WriteMsg(m *dns.Msg) error
	ReadMsg() (*dns.Msg, error)
	Close() error
}

// Upstream opens connections to upstream servers.
type Upstream interface {
	Dial(ctx context.Context, server netip.AddrPort) (Conn, error)
}

// UDPUpstream dials upstream servers over UDP with a miekg/dns client.
type UDPUpstream struct {
	client *dns.Client
}

// NewUDPUpstream returns an Upstream sending from local, or from an address
// chosen by the kernel when local is not valid.
func NewUDPUpstream(local netip.Addr, timeout time.Duration) *UDPUpstream {
	c := &dns.Client{
		Net:     "udp",
		Timeout: timeout,
		UDPSize: ecs.DefaultUDPSize,
	}
	if local.IsValid() {
		c.Dialer = &net.Dialer{
			Timeout:   timeout,
			LocalAddr: net.UDPAddrFromAddrPort(netip.AddrPortFrom(local, 0)),
		}
	}
	return &UDPUpstream{client: c}
}

// Dial implements Upstream.
func (u *UDPUpstream) Dial(ctx context.Context, server netip.AddrPort) (Conn, error) {
	conn, err := u.client.DialContext(ctx, server.String())
	if err != nil {
		return nil, err
	}
	conn.UDPSize = u.client.UDPSize
	return conn, nil
}

// Dispatcher sends queries upstream with the ECS option decided by Config.
type Dispatcher struct {
	Upstream Upstream
	Config   *policy.Config
	// Timeout is used when the exchange context carries no deadline.
	Timeout time.Duration
}

// NewDispatcher returns a Dispatcher over u.
func NewDispatcher(u Upstream, cfg *policy.Config) *Dispatcher {
	return &Dispatcher{Upstream: u, Config: cfg, Timeout: DefaultTimeout}
}

// Exchange sends query to server and waits for the reply with the same ID.
// Any ECS option already on query is replaced by the policy outcome for
// this server, inbound being the option the client sent, if any. query is
// not modified.
func (d *Dispatcher) Exchange(ctx context.Context, query *dns.Msg, server netip.AddrPort, inbound *ecs.Option) (*dns.Msg, policy.Decision, error) {
	if len(query.Question) == 0 {
		return nil, policy.Decision{}, ErrNoQuestion
	}
	conn, err := d.Upstream.Dial(ctx, server)
	if err != nil {
		return nil, policy.Decision{}, fmt.Errorf("dialing %s: %w", server, err)
	}
	defer conn.Close()

	decision := policy.Decide(policy.Query{
		Name:    query.Question[0].Name,
		Server:  server.Addr().Unmap(),
		Source:  localAddr(conn),
		Inbound: inbound,
	}, d.Config)

	out := query.Copy()
	ecs.Remove(out)
	if decision.Attach {
		ecs.Attach(out, decision.Option())
	}
	if glog.V(2) {
		glog.Infof("%s %s to %s: %s", out.Question[0].Name, dns.TypeToString[out.Question[0].Qtype], server, decision)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(d.timeout())
	}
	if err = conn.SetDeadline(deadline); err != nil {
		return nil, decision, err
	}
	if err = conn.WriteMsg(out); err != nil {
		return nil, decision, fmt.Errorf("sending to %s: %w", server, err)
	}
	for {
		r, err := conn.ReadMsg()
		if err != nil {
			return nil, decision, fmt.Errorf("reading from %s: %w", server, err)
		}
		if r.Id == out.Id {
			return r, decision, nil
		}
		glog.V(2).Infof("ignoring reply from %s with id %d, want %d", server, r.Id, out.Id)
		if err = ctx.Err(); err != nil {
			return nil, decision, err
		}
	}
}

func (d *Dispatcher) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

// localAddr returns the address the connection sends from.
func localAddr(c Conn) netip.Addr {
	switch a := c.LocalAddr().(type) {
	case *net.UDPAddr:
		return a.AddrPort().Addr().Unmap()
	case *net.TCPAddr:
		return a.AddrPort().Addr().Unmap()
	case nil:
		return netip.Addr{}
	default:
		ap, err := netip.ParseAddrPort(a.String())
		if err != nil {
			return netip.Addr{}
		}
		return ap.Addr().Unmap()
	}
}
