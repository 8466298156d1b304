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

package logger

import (
	"fmt"
	"log"
	"math/rand/v2"
	"net"
	"os"
	"time"

	msg "github.com/coredns/coredns/plugin/dnstap/msg"
	"github.com/coredns/coredns/request"
	dnstap "github.com/dnstap/golang-dnstap"
	"github.com/golang/glog"
	"github.com/miekg/dns"
	"google.golang.org/protobuf/proto"
)

var logger = log.New(os.Stderr, "", log.LstdFlags)

type anyDNSTapOutPut interface {
	RunOutputLoop()
	GetOutputChannel() chan []byte
	Close()
}

// Config represents the configuration of the dnstap logger.
type Config struct {
	FlushInterval int
	Timeout       int
	Retry         int
	Target        string
	Remote        string
	LogFormat     string
	SamplingRate  float64
}

// DNSTapLogger logs client responses to a dnstap output
type DNSTapLogger struct {
	dnsTapOutput anyDNSTapOutPut
	samplingRate float64
	identity     []byte
}

// NewLogger initialize a DNSTapLogger by setting the right outputs and format
func NewLogger(config Config) (l *DNSTapLogger, err error) {
	if config.SamplingRate < 0.0 || config.SamplingRate > 1.0 {
		return nil, fmt.Errorf("sampling rate should be >= 0.0 and <= 1.0, got %f", config.SamplingRate)
	}
	l = &DNSTapLogger{samplingRate: config.SamplingRate}
	if hostname, err := os.Hostname(); err == nil {
		l.identity = []byte(hostname)
	}
	switch config.Target {
	case "stdout":
		var formatterFunc dnstap.TextFormatFunc
		switch config.LogFormat {
		case "json":
			formatterFunc = dnstap.JSONFormat
		case "yaml":
			formatterFunc = dnstap.YamlFormat
		case "text":
			formatterFunc = dnstap.TextFormat
		default:
			return nil, fmt.Errorf("%s: is an invalid log format for dnstap stdoutlogger. Valid formats are: text, json, yaml", config.LogFormat)
		}
		l.dnsTapOutput = dnstap.NewTextOutput(os.Stdout, formatterFunc)
	case "tcp", "unix":
		if config.Remote == "" {
			return nil, fmt.Errorf("no remote provided for dnstap %s target, refusing to start", config.Target)
		}
		var naddr net.Addr
		if config.Target == "tcp" {
			naddr, err = net.ResolveTCPAddr(config.Target, config.Remote)
		} else {
			naddr, err = net.ResolveUnixAddr(config.Target, config.Remote)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: invalid %s address provided to dnstap logger: %w", config.Remote, config.Target, err)
		}
		sockOutput, err := dnstap.NewFrameStreamSockOutput(naddr)
		if err != nil {
			return nil, err
		}
		sockOutput.SetTimeout(time.Duration(config.Timeout) * time.Second)
		sockOutput.SetFlushTimeout(time.Duration(config.FlushInterval) * time.Second)
		sockOutput.SetRetryInterval(time.Duration(config.Retry) * time.Second)
		sockOutput.SetLogger(logger)
		l.dnsTapOutput = sockOutput
	default:
		return nil, fmt.Errorf("%s: invalid target; valid targets are: stdout, tcp, unix", config.Target)
	}
	return l, nil
}

// StartLoggerOutput starts the dnstap logger output loop
func (l *DNSTapLogger) StartLoggerOutput() {
	go l.dnsTapOutput.RunOutputLoop()
}

// Close flushes and stops the output.
func (l *DNSTapLogger) Close() {
	l.dnsTapOutput.Close()
}

// Log sends a CLIENT_RESPONSE frame for r. The ECS decision is carried in
// the frame's extra field.
func (l *DNSTapLogger) Log(state request.Request, r *dns.Msg, e Entry) {
	if l.samplingRate < 1.0 && rand.Float64() >= l.samplingRate {
		return
	}
	m := new(dnstap.Message)
	if err := msg.SetQueryAddress(m, state.W.RemoteAddr()); err != nil {
		glog.Errorf("Failed to set QueryAddress %v for dnstap message", state.W.RemoteAddr())
	}
	if err := msg.SetResponseAddress(m, state.W.LocalAddr()); err != nil {
		glog.Errorf("Failed to set ResponseAddress %v for dnstap message", state.W.LocalAddr())
	}
	now := time.Now()
	msg.SetQueryTime(m, now.Add(-e.Duration))
	msg.SetResponseTime(m, now)
	msg.SetType(m, dnstap.Message_CLIENT_RESPONSE)
	if buf, err := state.Req.Pack(); err == nil {
		m.QueryMessage = buf
	}
	if buf, err := r.Pack(); err == nil {
		m.ResponseMessage = buf
	}

	dtType := dnstap.Dnstap_MESSAGE
	dt := &dnstap.Dnstap{
		Type:     &dtType,
		Identity: l.identity,
		Message:  m,
		Extra:    []byte(e.Decision.String()),
	}

	pbuf, err := proto.Marshal(dt)
	if err != nil {
		glog.Errorf("Failed to marshal Dnstap message %v", dt)
		return
	}
	output := l.dnsTapOutput.GetOutputChannel()
	select {
	case output <- pbuf:
	default:
		glog.Errorf("Failed to enqueue dnstap message for %s, buffer is full", state.Name())
	}
}

// LogFailed is used to log failures
func (l *DNSTapLogger) LogFailed(state request.Request, e Entry) {
	m := new(dns.Msg)
	m.SetRcode(state.Req, dns.RcodeServerFailure)
	l.Log(state, m, e)
}
