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

package throttle

import (
	"context"
	"time"

	"github.com/facebook/dns/ecsrecursor/stats"
)

// InFlightKey is the counter holding the number of admitted queries.
const InFlightKey = "throttle.inflight"

// Monitor reports l.Count() to s every interval until ctx is done.
func Monitor(ctx context.Context, l *Limiter, s stats.Stats, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.ResetCounterTo(InFlightKey, l.Count())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
