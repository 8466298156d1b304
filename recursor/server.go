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
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/coredns/coredns/plugin"
	"github.com/golang/glog"
	"github.com/miekg/dns"

	"github.com/facebook/dns/ecsrecursor/dispatch"
	"github.com/facebook/dns/ecsrecursor/logger"
	"github.com/facebook/dns/ecsrecursor/metrics"
	"github.com/facebook/dns/ecsrecursor/nsid"
	"github.com/facebook/dns/ecsrecursor/stats"
	"github.com/facebook/dns/ecsrecursor/throttle"
)

// Parent key for tracking connection metrics for UDP and TCP
const connectionKey = "dns.connection"

// ThrottleMonitorInterval is how often the number of in-flight queries is
// reported when concurrency is limited.
const ThrottleMonitorInterval = time.Second

type anyMetricsExporter interface {
	ConsumeStats(category string, stats *metrics.Stats) error
}

// Server collects all of the running servers and the server configurations.
type Server struct {
	conf            ServerConfig
	handler         *Handler
	servers         []*dns.Server
	stats           stats.Stats
	metricsExporter anyMetricsExporter
	cancel          context.CancelFunc
	// If NotifyStartedFunc is set it is called once the server has started listening.
	NotifyStartedFunc func()
	// Wait group which can be used to wait for servers to initialize and start serving.
	// Client can wait for servers to start by invoking Done() method in NotifyStartedFunc
	// and wait for WaitGroup
	ServersStartedWG sync.WaitGroup
}

// NewServer returns a Server for conf. metricsExporter may be nil.
func NewServer(conf ServerConfig, l logger.Logger, s stats.Stats, metricsExporter anyMetricsExporter) (*Server, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		s = &stats.DummyStats{}
	}
	upstream := dispatch.NewUDPUpstream(conf.QueryLocalAddress, conf.UpstreamTimeout)
	d := dispatch.NewDispatcher(upstream, conf.ECS)
	if conf.UpstreamTimeout > 0 {
		d.Timeout = conf.UpstreamTimeout
	}
	return &Server{
		conf:            conf,
		handler:         NewHandler(d, conf.Forwarders, s, l),
		stats:           s,
		metricsExporter: metricsExporter,
	}, nil
}

// initUDPServer opens a UDP socket and returns a DNS server ready for
// ActivateAndServe.
func (srv *Server) initUDPServer(addr string, h dns.Handler) (*dns.Server, error) {
	pc, err := listenUDP(addr, srv.listenConf())
	if err != nil {
		return nil, fmt.Errorf("failed to init UDP server: %w", err)
	}
	return &dns.Server{
		Addr:       addr,
		Net:        "udp",
		PacketConn: pc,
		Handler:    h,
	}, nil
}

// initTCPServer opens a monitored TCP socket and returns a DNS server ready
// for ActivateAndServe.
func (srv *Server) initTCPServer(addr string, h dns.Handler, s *metrics.Stats) (*dns.Server, error) {
	l, err := listenTCP(addr, srv.listenConf(), s)
	if err != nil {
		return nil, fmt.Errorf("failed to init TCP server: %w", err)
	}
	return &dns.Server{
		Addr:     addr,
		Net:      "tcp",
		Listener: l,
		Handler:  h,
	}, nil
}

// listenConf returns the listener config used by individual servers to spawn
// listeners.
func (srv *Server) listenConf() net.ListenConfig {
	conf := net.ListenConfig{}
	if srv.conf.ReusePort > 0 {
		conf = net.ListenConfig{Control: reusePort}
	}
	return conf
}

// addresses returns the host:port pairs to listen on.
func (srv *Server) addresses() []string {
	if len(srv.conf.IPs) == 0 {
		return []string{joinAddress("", srv.conf.Port)}
	}
	addrs := make([]string, 0, len(srv.conf.IPs))
	for _, ip := range srv.conf.IPs {
		addrs = append(addrs, joinAddress(ip.String(), srv.conf.Port))
	}
	return addrs
}

// Start iterates through a list of configured IPs, and starts a separate
// goroutine to handle DNS requests on the protocols enabled in the
// configuration. Start does not block, and the servers may fail with fatal
// errors.
func (srv *Server) Start() (err error) {
	var (
		defaultHandler  plugin.Handler = srv.handler
		throttleHandler *throttle.Handler
		throttleLimiter *throttle.Limiter
		numListeners    = srv.conf.ReusePort
		ctx             context.Context
	)
	ctx, srv.cancel = context.WithCancel(context.Background())

	// We have at least 1 listener
	if numListeners == 0 {
		numListeners = 1
	}

	// DNS connection stats
	connStats := metrics.NewStats()
	if srv.metricsExporter != nil {
		if err = srv.metricsExporter.ConsumeStats(connectionKey, connStats); err != nil {
			glog.Errorf("Failed to register metrics for consumption. %v, err: %v", connStats, err)
		}
	}

	glog.Infof("ECS allow-list: %q, use incoming ECS: %v, bits: %d/%d",
		srv.conf.ECS.AllowList.String(), srv.conf.ECS.UseIncomingECS, srv.conf.ECS.IPv4Bits, srv.conf.ECS.IPv6Bits)
	for _, z := range srv.conf.Forwarders.Zones() {
		glog.Infof("Forwarding %s", z)
	}

	if srv.conf.NSID {
		nsidHandler, err := nsid.NewHandler(srv.conf.ServerID)
		if err != nil {
			return fmt.Errorf("failed to initialize nsidHandler: %w", err)
		}
		glog.Infof("Enabling NSID handler")
		nsidHandler.Next = defaultHandler
		defaultHandler = nsidHandler
	} else {
		glog.Infof("nsid was not specified, not initializing nsidHandler")
	}

	if srv.conf.MaxConcurrency > 0 {
		glog.Infof("Limiting total concurrency to %d", srv.conf.MaxConcurrency)
		if throttleLimiter, err = throttle.NewLimiter(srv.conf.MaxConcurrency); err != nil {
			return err
		}
		go throttle.Monitor(ctx, throttleLimiter, srv.stats, ThrottleMonitorInterval)
	}

	if throttleLimiter != nil {
		throttleHandler = throttle.NewHandler(throttleLimiter)
		throttleHandler.Next = defaultHandler
		defaultHandler = throttleHandler
	}
	handler := &serveMux{defaultHandler: defaultHandler}

	for _, addr := range srv.addresses() {
		for i := 0; i < numListeners; i++ {
			// UDP is the default, and is always run.
			s, err := srv.initUDPServer(addr, handler)
			if err != nil {
				return err
			}
			srv.serve(s, throttleHandler, monitorUDP, connStats)

			// Optionally start a TCP server for the address as well.
			if srv.conf.TCP {
				s, err := srv.initTCPServer(addr, handler, connStats)
				if err != nil {
					return err
				}
				srv.serve(s, throttleHandler, monitorTCP, connStats)
			}
		}
	}
	return nil
}

func (srv *Server) serve(s *dns.Server, throttleHandler *throttle.Handler, t MonitorType, connStats *metrics.Stats) {
	s.ReadTimeout = srv.conf.ReadTimeout
	s.NotifyStartedFunc = srv.NotifyStartedFunc
	if throttleHandler != nil {
		throttleHandler.Attach(s)
	}
	s.DecorateReader = newECSGuardReader(srv.stats, s.DecorateReader)
	s.DecorateReader = newMonitoredReader(t, connStats, s.DecorateReader)
	srv.servers = append(srv.servers, s)
	// Server never calls Done() method, it only provides
	// this wg for client to use.
	srv.ServersStartedWG.Add(1)
	go func() {
		if err := s.ActivateAndServe(); err != nil {
			glog.Errorf("%s server for %s failed to start: %v", s.Net, s.Addr, err)
		}
	}()
}

// Addrs returns the addresses the servers listen on, in start order.
func (srv *Server) Addrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(srv.servers))
	for _, s := range srv.servers {
		switch {
		case s.PacketConn != nil:
			addrs = append(addrs, s.PacketConn.LocalAddr())
		case s.Listener != nil:
			addrs = append(addrs, s.Listener.Addr())
		}
	}
	return addrs
}

// Shutdown shuts down all the underlying servers.
func (srv *Server) Shutdown() {
	glog.Infof("Shutting down %d servers", len(srv.servers))
	if srv.cancel != nil {
		srv.cancel()
	}
	for _, s := range srv.servers {
		glog.Infof("Shutting down %s/%s", s.Addr, s.Net)
		if err := s.Shutdown(); err != nil {
			glog.Errorf("%v", err)
		}
	}
}

// joinAddress joins a string ip address and an integer port.
func joinAddress(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
