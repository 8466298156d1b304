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

package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	c := NewCounters()
	var s Stats = c
	s.IncrementCounter("DNS_queries")
	s.IncrementCounterBy("DNS_queries", 2)
	s.ResetCounterTo("inflight", 7)
	s.IncrementCounter("ecs.attached")
	s.ResetCounter("ecs.attached")
	s.AddSample("upstream.latency_us", 120)
	s.AddSample("upstream.latency_us", 80)

	assert.Equal(t, int64(3), c.Get("DNS_queries"))
	assert.Equal(t, int64(7), c.Get("inflight"))
	assert.Equal(t, int64(0), c.Get("ecs.attached"))
	assert.Equal(t, int64(0), c.Get("missing"))
	assert.Equal(t, []int64{120, 80}, c.Samples("upstream.latency_us"))
}

func TestCountersConcurrent(t *testing.T) {
	c := NewCounters()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncrementCounter("DNS_queries")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), c.Get("DNS_queries"))
}

func TestDummyStats(t *testing.T) {
	var s Stats = &DummyStats{}
	s.IncrementCounter("DNS_queries")
	s.IncrementCounterBy("DNS_queries", 2)
	s.ResetCounter("DNS_queries")
	s.ResetCounterTo("DNS_queries", 3)
	s.AddSample("upstream.latency_us", 1)
}
