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

// Package metrics exports Stats counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ExportInterval is how often Stats are copied into the registry.
const ExportInterval = time.Second

// Server exports Stats.
type Server interface {
	Serve() error
	SetAlive()
	ConsumeStats(category string, stats *Stats) error
	UpdateExporter()
	Shutdown(ctx context.Context) error
}

// PrometheusMetricsServer contains the struct for the PrometheusMetricsServer
type PrometheusMetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server
	done     chan struct{}
	once     sync.Once

	lock  sync.Mutex
	stats map[string]*Stats
}

// NewMetricsServer creates a PrometheusMetricsServer
func NewMetricsServer(addr string) (server *PrometheusMetricsServer, err error) {
	server = &PrometheusMetricsServer{
		registry: prometheus.NewRegistry(),
		done:     make(chan struct{}),
		stats:    make(map[string]*Stats),
	}
	server.registry.MustRegister(collectors.NewBuildInfoCollector())
	server.registry.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollections(collectors.GoRuntimeMemStatsCollection | collectors.GoRuntimeMetricsCollection),
	))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		server.registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	))
	server.srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return server, nil
}

// Serve sets up  and starts the prometheus http server
func (s *PrometheusMetricsServer) Serve() error {
	glog.Infof("Starting prometheus metrics server at %q", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the http server and the exporter loop.
func (s *PrometheusMetricsServer) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })
	return s.srv.Shutdown(ctx)
}

// SetAlive adds the alive metric into the metrics registry
func (s *PrometheusMetricsServer) SetAlive() {
	status := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alive",
		Help: "Server running",
	})

	s.registry.MustRegister(status)
	status.Set(1.0)
}

// ConsumeStats registers a Stats instance to be added to the prometheus metrics registry
func (s *PrometheusMetricsServer) ConsumeStats(category string, stats *Stats) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.stats[category]; ok {
		return errors.New("stats already registered for category " + category)
	}
	s.stats[category] = stats
	return nil
}

// UpdateExporter syncs the registered Stats instances to the metrics
// registry every ExportInterval until Shutdown.
func (s *PrometheusMetricsServer) UpdateExporter() {
	ticker := time.NewTicker(ExportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.export()
		case <-s.done:
			return
		}
	}
}

// export copies the current value of every counter into a gauge.
func (s *PrometheusMetricsServer) export() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for category, stats := range s.stats {
		for mkey, mval := range stats.Get() {
			promCollector := prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: flattenKey(category),
				Name:      flattenKey(mkey),
				Help:      mkey,
			})
			if err := s.registry.Register(promCollector); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					glog.Errorf("failed to register metric %s %v", mkey, err)
					continue
				}
				promCollector = are.ExistingCollector.(prometheus.Gauge)
			}
			promCollector.Set(float64(mval))
		}
	}
}

func flattenKey(key string) string {
	return strings.NewReplacer(" ", "_", ".", "_", "-", "_", "=", "_", "/", "_").Replace(key)
}
