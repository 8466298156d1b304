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

// ecs-echo answers TXT queries for a probe name with the EDNS Client Subnet
// option it received, to observe what a resolver sends upstream.
package main

import (
	"context"
	"flag"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/dns/ecsrecursor/ecs"
	"github.com/facebook/dns/ecsrecursor/ecsecho"
)

var (
	logLevel string
	listen   string
	probe    string
	glue     string
	tcp      bool
)

func configureVerbosity() {
	switch logLevel {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("Unrecognized log level: %v", logLevel)
	}
}

func parseGlue(s string) ([]netip.Addr, error) {
	var addrs []netip.Addr
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		addr, err := netip.ParseAddr(f)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func main() {
	flag.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: trace, debug, info, warning, error")
	flag.StringVar(&listen, "listen", "127.0.0.1:5300", "Address to listen on")
	flag.StringVar(&probe, "probe", "ecs-echo.example.", "Name answered with the received ECS option")
	flag.StringVar(&glue, "glue", "", "Comma separated addresses of the probe name server, defaults to the listening address")
	flag.BoolVar(&tcp, "tcp", true, "Also listen on TCP")
	flag.Parse()
	configureVerbosity()

	addrs, err := parseGlue(glue)
	if err != nil {
		log.Fatalf("Invalid glue: %v", err)
	}
	h := ecsecho.NewHandler(probe, addrs...)
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		if len(r.Question) == 0 {
			dns.HandleFailed(w, r)
			return
		}
		if log.IsLevelEnabled(log.DebugLevel) {
			o, err := ecs.FromMsg(r)
			if err != nil {
				log.Debugf("%s %s from %s: %v", r.Question[0].Name, dns.TypeToString[r.Question[0].Qtype], w.RemoteAddr(), err)
			} else {
				log.Debugf("%s %s from %s: %s", r.Question[0].Name, dns.TypeToString[r.Question[0].Qtype], w.RemoteAddr(), ecsecho.Text(o))
			}
		}
		if _, err := h.ServeDNS(context.Background(), w, r); err != nil {
			log.Warnf("%s: %v", r.Question[0].Name, err)
		}
	})

	nets := []string{"udp"}
	if tcp {
		nets = append(nets, "tcp")
	}
	var servers []*dns.Server
	for _, n := range nets {
		s := &dns.Server{Addr: listen, Net: n, Handler: handler}
		servers = append(servers, s)
		go func() {
			if err := s.ListenAndServe(); err != nil {
				log.Fatalf("Failed to serve %s on %s: %v", s.Net, s.Addr, err)
			}
		}()
	}
	log.Infof("Answering %s on %s", h.Probe(), listen)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	for _, s := range servers {
		if err := s.Shutdown(); err != nil {
			log.Errorf("Shutting down %s: %v", s.Net, err)
		}
	}
}
