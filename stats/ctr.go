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

import "sync"

// Counters implements Stats in memory. It is meant for tests, where the
// counters of a handler are checked after the fact.
type Counters struct {
	mu      sync.Mutex
	values  map[string]int64
	samples map[string][]int64
}

// NewCounters returns new instance of the Counters type
func NewCounters() *Counters {
	return &Counters{
		values:  make(map[string]int64),
		samples: make(map[string][]int64),
	}
}

// ResetCounterTo sets the specified key to the value.
func (s *Counters) ResetCounterTo(key string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// ResetCounter resets the specified key to zero.
func (s *Counters) ResetCounter(key string) {
	s.ResetCounterTo(key, 0)
}

// IncrementCounterBy increments the specified key by the value
func (s *Counters) IncrementCounterBy(key string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] += value
}

// IncrementCounter increments the specified key by one
func (s *Counters) IncrementCounter(key string) {
	s.IncrementCounterBy(key, 1)
}

// AddSample records a sample for key.
func (s *Counters) AddSample(key string, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[key] = append(s.samples[key], value)
}

// Get returns the value of the counter for key.
func (s *Counters) Get(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Samples returns the samples recorded for key.
func (s *Counters) Samples(key string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.samples[key]...)
}
