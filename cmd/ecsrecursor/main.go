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

// ecsrecursor is a forwarding resolver front-end that decides, per upstream
// query, whether to send an EDNS Client Subnet option and with which subnet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/facebook/dns/ecsrecursor/config"
	"github.com/facebook/dns/ecsrecursor/logger"
	"github.com/facebook/dns/ecsrecursor/metrics"
	"github.com/facebook/dns/ecsrecursor/recursor"
)

// statsCategory is the metrics category of the query path counters.
const statsCategory = "dns"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ecsrecursor",
	Short: "Forwarding resolver with EDNS Client Subnet support",
	Long: `Forwarding resolver with EDNS Client Subnet support

Settings are read from the YAML file given with --config. Every setting can
be overridden with a flag of the same name, e.g.

  ecsrecursor --config recursor.yaml --ecs-ipv4-bits 32 --use-incoming-edns-subnet yes
`,
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		// glog reads its flags from the standard flag set
		return flag.CommandLine.Parse(nil)
	},
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to the YAML settings file")
	for _, k := range config.Keys() {
		rootCmd.Flags().String(k, "", fmt.Sprintf("override %q from the settings file", k))
	}
	rootCmd.Flags().AddGoFlagSet(flag.CommandLine)
}

// loadSettings reads the settings file, if any, and applies the flags set
// on the command line.
func loadSettings(fs *pflag.FlagSet) (*config.Settings, error) {
	s := config.Default()
	if configPath != "" {
		var err error
		if s, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil || !config.IsKey(f.Name) {
			return
		}
		err = s.Override(f.Name, f.Value.String())
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newLogger(s *config.Settings) (logger.Logger, func(), error) {
	if c, ok := s.DNSTapConfig(); ok {
		l, err := logger.NewLogger(c)
		if err != nil {
			return nil, nil, err
		}
		l.StartLoggerOutput()
		return l, l.Close, nil
	}
	if s.LogQueries {
		return &logger.TextLogger{IoWriter: os.Stderr}, func() {}, nil
	}
	return &logger.DummyLogger{}, func() {}, nil
}

func newMetricsServer(addr string) (metrics.Server, error) {
	if addr == "" {
		return metrics.NewDummyMetricsServer(addr)
	}
	return metrics.NewMetricsServer(addr)
}

func run(cmd *cobra.Command, _ []string) error {
	defer glog.Flush()

	s, err := loadSettings(cmd.Flags())
	if err != nil {
		return err
	}
	conf, err := s.ServerConfig()
	if err != nil {
		return err
	}
	glog.Infof("Server config: %s", conf)

	l, closeLogger, err := newLogger(s)
	if err != nil {
		return fmt.Errorf("failed to initialize query logger: %w", err)
	}
	defer closeLogger()

	metricsServer, err := newMetricsServer(s.MetricsAddress)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	stats := metrics.NewStats()
	if err = metricsServer.ConsumeStats(statsCategory, stats); err != nil {
		return err
	}
	go func() {
		if err := metricsServer.Serve(); err != nil {
			glog.Errorf("Metrics server failed: %v", err)
		}
	}()
	go metricsServer.UpdateExporter()

	srv, err := recursor.NewServer(conf, l, stats, metricsServer)
	if err != nil {
		return err
	}
	if err = srv.Start(); err != nil {
		return err
	}
	metricsServer.SetAlive()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	glog.Infof("Received %s, shutting down", <-sig)

	srv.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return metricsServer.Shutdown(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}
