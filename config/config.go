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

// Package config loads the resolver settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/facebook/dns/ecsrecursor/allowlist"
	"github.com/facebook/dns/ecsrecursor/forward"
	"github.com/facebook/dns/ecsrecursor/logger"
	"github.com/facebook/dns/ecsrecursor/policy"
	"github.com/facebook/dns/ecsrecursor/recursor"
)

// Settings mirrors the settings file. Keys are named after the recursor
// settings they stand for.
type Settings struct {
	EDNSSubnetWhitelist   string `yaml:"edns-subnet-whitelist"`
	UseIncomingEDNSSubnet bool   `yaml:"use-incoming-edns-subnet"`
	ECSIPv4Bits           int    `yaml:"ecs-ipv4-bits"`
	ECSIPv6Bits           int    `yaml:"ecs-ipv6-bits"`

	ForwardZones        string        `yaml:"forward-zones"`
	ForwardZonesRecurse string        `yaml:"forward-zones-recurse"`
	QueryLocalAddress   string        `yaml:"query-local-address"`
	NetworkTimeout      time.Duration `yaml:"network-timeout"`

	LocalAddress   string        `yaml:"local-address"`
	LocalPort      int           `yaml:"local-port"`
	TCP            bool          `yaml:"tcp"`
	ReusePort      int           `yaml:"reuseport"`
	ReadTimeout    time.Duration `yaml:"read-timeout"`
	MaxConcurrency int           `yaml:"max-concurrency"`

	LogQueries         bool    `yaml:"log-queries"`
	DNSTapTarget       string  `yaml:"dnstap-target"`
	DNSTapRemote       string  `yaml:"dnstap-remote"`
	DNSTapFormat       string  `yaml:"dnstap-format"`
	DNSTapSamplingRate float64 `yaml:"dnstap-sampling-rate"`
	DNSTapTimeout      int     `yaml:"dnstap-timeout"`
	DNSTapRetry        int     `yaml:"dnstap-retry"`
	DNSTapFlush        int     `yaml:"dnstap-flush-interval"`

	NSID     bool   `yaml:"nsid"`
	ServerID string `yaml:"server-id"`

	MetricsAddress string `yaml:"metrics-address"`
}

// Default returns the settings used for keys missing from the file.
func Default() *Settings {
	return &Settings{
		ECSIPv4Bits:        policy.DefaultIPv4Bits,
		ECSIPv6Bits:        policy.DefaultIPv6Bits,
		NetworkTimeout:     recursor.DefaultUpstreamTimeout,
		LocalAddress:       "127.0.0.1",
		LocalPort:          recursor.DefaultPort,
		ReadTimeout:        recursor.DefaultReadTimeout,
		DNSTapFormat:       "text",
		DNSTapSamplingRate: 1.0,
		DNSTapTimeout:      30,
		DNSTapRetry:        10,
		DNSTapFlush:        1,
	}
}

// Load reads the settings file at path on top of the defaults.
func Load(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Decode reads settings from r on top of the defaults. Unknown keys are an
// error. An empty document yields the defaults.
func Decode(r io.Reader) (*Settings, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return s, nil
}

// Validate checks that the settings build a working resolver.
func (s *Settings) Validate() error {
	if _, err := s.ECSConfig(); err != nil {
		return err
	}
	t, err := s.Forwarders()
	if err != nil {
		return err
	}
	if t.Len() == 0 {
		return errors.New("one of forward-zones or forward-zones-recurse must be set")
	}
	if _, err := s.queryLocalAddress(); err != nil {
		return err
	}
	if _, err := s.localAddresses(); err != nil {
		return err
	}
	if s.LocalPort < 0 || s.LocalPort > 65535 {
		return fmt.Errorf("local-port: %d is out of range", s.LocalPort)
	}
	if s.DNSTapSamplingRate < 0 || s.DNSTapSamplingRate > 1 {
		return fmt.Errorf("dnstap-sampling-rate: %v is out of range 0..1", s.DNSTapSamplingRate)
	}
	return nil
}

// ECSConfig builds the ECS policy.
func (s *Settings) ECSConfig() (*policy.Config, error) {
	l, err := allowlist.Parse(s.EDNSSubnetWhitelist)
	if err != nil {
		return nil, fmt.Errorf("edns-subnet-whitelist: %w", err)
	}
	return policy.NewConfig(l, s.UseIncomingEDNSSubnet, s.ECSIPv4Bits, s.ECSIPv6Bits)
}

// Forwarders builds the forward table from both zone settings.
func (s *Settings) Forwarders() (*forward.Table, error) {
	t, err := forward.Parse(s.ForwardZones, false)
	if err != nil {
		return nil, fmt.Errorf("forward-zones: %w", err)
	}
	recurse, err := forward.Parse(s.ForwardZonesRecurse, true)
	if err != nil {
		return nil, fmt.Errorf("forward-zones-recurse: %w", err)
	}
	if err := t.Merge(recurse); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Settings) queryLocalAddress() (netip.Addr, error) {
	if strings.TrimSpace(s.QueryLocalAddress) == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(s.QueryLocalAddress))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("query-local-address: %w", err)
	}
	return addr.Unmap(), nil
}

func (s *Settings) localAddresses() ([]netip.Addr, error) {
	var addrs []netip.Addr
	for _, f := range strings.FieldsFunc(s.LocalAddress, func(r rune) bool { return r == ',' || r == ' ' }) {
		addr, err := netip.ParseAddr(f)
		if err != nil {
			return nil, fmt.Errorf("local-address: %w", err)
		}
		addrs = append(addrs, addr.Unmap())
	}
	return addrs, nil
}

// ServerConfig builds the configuration of the client facing servers.
func (s *Settings) ServerConfig() (recursor.ServerConfig, error) {
	conf := recursor.NewServerConfig()
	if err := s.Validate(); err != nil {
		return conf, err
	}
	var err error
	if conf.ECS, err = s.ECSConfig(); err != nil {
		return conf, err
	}
	if conf.Forwarders, err = s.Forwarders(); err != nil {
		return conf, err
	}
	if conf.QueryLocalAddress, err = s.queryLocalAddress(); err != nil {
		return conf, err
	}
	if conf.IPs, err = s.localAddresses(); err != nil {
		return conf, err
	}
	conf.Port = s.LocalPort
	conf.TCP = s.TCP
	conf.ReusePort = s.ReusePort
	conf.ReadTimeout = s.ReadTimeout
	conf.MaxConcurrency = s.MaxConcurrency
	conf.UpstreamTimeout = s.NetworkTimeout
	conf.NSID = s.NSID
	conf.ServerID = s.ServerID
	return conf, nil
}

// DNSTapConfig returns the dnstap logger configuration. ok is false when
// dnstap-target is unset.
func (s *Settings) DNSTapConfig() (c logger.Config, ok bool) {
	if s.DNSTapTarget == "" {
		return c, false
	}
	return logger.Config{
		Target:        s.DNSTapTarget,
		Remote:        s.DNSTapRemote,
		LogFormat:     s.DNSTapFormat,
		SamplingRate:  s.DNSTapSamplingRate,
		Timeout:       s.DNSTapTimeout,
		Retry:         s.DNSTapRetry,
		FlushInterval: s.DNSTapFlush,
	}, true
}

// Keys returns the settings file keys in declaration order.
func Keys() []string {
	t := reflect.TypeOf(Settings{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if k := t.Field(i).Tag.Get("yaml"); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsKey reports whether key is a settings file key.
func IsKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Override sets key to value as if value was written for key in the
// settings file.
func (s *Settings) Override(key, value string) error {
	if !IsKey(key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	v := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	if value == "" {
		v.Tag = "!!str"
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: key},
		v,
	}}
	if err := doc.Decode(s); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
