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
)

type sample struct {
	value   int64
	expires time.Time
}

// slidingWindow keeps the samples added during the last sampleLifetime.
type slidingWindow struct {
	mutex          sync.Mutex
	sampleLifetime time.Duration
	samples        []sample
	now            func() time.Time
}

func newSlidingWindow(sampleLifetime time.Duration) *slidingWindow {
	return &slidingWindow{
		sampleLifetime: sampleLifetime,
		now:            time.Now,
	}
}

// expire drops the samples that are past their lifetime. Samples are
// appended in time order so they expire from the front. Must be called with
// the mutex held.
func (sw *slidingWindow) expire() {
	now := sw.now()
	i := 0
	for i < len(sw.samples) && !sw.samples[i].expires.After(now) {
		i++
	}
	if i > 0 {
		sw.samples = append(sw.samples[:0], sw.samples[i:]...)
	}
}

// Add adds a new sample into the sliding window
func (sw *slidingWindow) Add(v int64) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	sw.expire()
	sw.samples = append(sw.samples, sample{value: v, expires: sw.now().Add(sw.sampleLifetime)})
}

// Samples returns current samples from the sliding window
func (sw *slidingWindow) Samples() []int64 {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	sw.expire()
	samples := make([]int64, len(sw.samples))
	for idx, s := range sw.samples {
		samples[idx] = s.value
	}
	return samples
}
