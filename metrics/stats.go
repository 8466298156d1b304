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

package metrics

import (
	"sync"
	"time"

	"github.com/eclesh/welford"
)

// DefaultSampleLifetime is how long a sample counts towards min/max/avg.
const DefaultSampleLifetime = time.Minute

// Stats implements stats.Stats. Counters are exported as is, samples as
// <key>.min, <key>.max and <key>.avg over the sample lifetime.
// * NewStats to create it,
// * IncrementCounter increments the counter by 1
// * IncrementCounterBy increments the counter by `value`
// * ResetCounter resets the counter to 0
// * ResetCounterTo resets the counter to `value`
// * AddSample records a sample
// * Get to export them.
type Stats struct {
	lock           sync.RWMutex
	values         map[string]int64
	windows        map[string]*slidingWindow
	sampleLifetime time.Duration
}

// NewStats creates a new stats counter.
func NewStats() *Stats {
	return NewStatsWithLifetime(DefaultSampleLifetime)
}

// NewStatsWithLifetime creates a new stats counter keeping samples for
// sampleLifetime.
func NewStatsWithLifetime(sampleLifetime time.Duration) *Stats {
	return &Stats{
		values:         make(map[string]int64),
		windows:        make(map[string]*slidingWindow),
		sampleLifetime: sampleLifetime,
	}
}

// IncrementCounter increments the counter for Key by 1.
func (stats *Stats) IncrementCounter(Key string) {
	stats.lock.Lock()
	stats.values[Key]++
	stats.lock.Unlock()
}

// IncrementCounterBy adds Value to the counter for Key
func (stats *Stats) IncrementCounterBy(Key string, Value int64) {
	stats.lock.Lock()
	stats.values[Key] += Value
	stats.lock.Unlock()
}

// ResetCounter sets the counter for Key to 0.
func (stats *Stats) ResetCounter(Key string) {
	stats.lock.Lock()
	stats.values[Key] = 0
	stats.lock.Unlock()
}

// ResetCounterTo sets the counter for Key to the given value.
func (stats *Stats) ResetCounterTo(Key string, Value int64) {
	stats.lock.Lock()
	stats.values[Key] = Value
	stats.lock.Unlock()
}

// AddSample records Value in the sliding window of Key.
func (stats *Stats) AddSample(Key string, Value int64) {
	stats.lock.RLock()
	w, ok := stats.windows[Key]
	stats.lock.RUnlock()
	if !ok {
		stats.lock.Lock()
		if w, ok = stats.windows[Key]; !ok {
			w = newSlidingWindow(stats.sampleLifetime)
			stats.windows[Key] = w
		}
		stats.lock.Unlock()
	}
	w.Add(Value)
}

// Get returns a snapshot of every counter and sample aggregate.
func (stats *Stats) Get() map[string]int64 {
	var ret = make(map[string]int64)
	stats.lock.RLock()
	defer stats.lock.RUnlock()
	for key, val := range stats.values {
		ret[key] = val
	}
	for key, w := range stats.windows {
		samples := w.Samples()
		if len(samples) == 0 {
			continue
		}
		s := welford.New()
		lo, hi := samples[0], samples[0]
		for _, v := range samples {
			s.Add(float64(v))
			lo, hi = min(lo, v), max(hi, v)
		}
		ret[key+".min"] = lo
		ret[key+".max"] = hi
		ret[key+".avg"] = int64(s.Mean())
	}
	return ret
}
