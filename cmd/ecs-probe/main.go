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

// ecs-probe sends the ECS echo probe to a resolver, optionally with a client
// subnet, and prints the subnets the echo responder reported.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

var (
	logLevel string
	server   string
	name     string
	subnet   string
	count    int
	maxqps   int
	timeout  time.Duration
	useTCP   bool
)

func main() {
	flag.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")
	flag.StringVar(&server, "server", "127.0.0.1:53", "Resolver to query")
	flag.StringVar(&name, "name", "ecs-echo.example.", "Probe name")
	flag.StringVar(&subnet, "ecs", "", "Client subnet to send, e.g. 192.0.2.1/32")
	flag.IntVar(&count, "count", 1, "Number of queries to send")
	flag.IntVar(&maxqps, "max-qps", 0, "max number of QPS")
	flag.DurationVar(&timeout, "timeout", 2*time.Second, "Duration of timeout for queries")
	flag.BoolVar(&useTCP, "tcp", false, "Query over TCP")
	flag.Parse()

	switch logLevel {
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

	var rate ratelimit.Limiter
	if maxqps > 0 {
		log.Infof("Limiting max qps to: %d", maxqps)
		rate = ratelimit.New(maxqps)
	} else {
		rate = ratelimit.NewUnlimited()
	}
	client := &dns.Client{Net: "udp", Timeout: timeout}
	if useTCP {
		client.Net = "tcp"
	}
	p := &prober{client: client, server: server, name: name, subnet: subnet, rate: rate}

	log.Debugf("Sending %d %s TXT queries to %s with ECS %q", count, name, server, subnet)
	res, err := p.run(count)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(res)
	if res.errors == count {
		log.Fatalf("No answer from %s", server)
	}
}
