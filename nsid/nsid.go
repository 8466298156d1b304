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

// Package nsid answers the EDNS name server identifier option (RFC 5001).
package nsid

import (
	"context"
	"encoding/hex"
	"errors"
	"os"

	"github.com/coredns/coredns/plugin"
	"github.com/golang/glog"
	"github.com/miekg/dns"
)

// Handler is a [plugin.Handler] that implements the NSID extension.
type Handler struct {
	nsid string
	Next plugin.Handler
}

// NewHandler produces a new NSID insertion handler identifying the server
// as id, or as the host name when id is empty.
func NewHandler(id string) (*Handler, error) {
	if id == "" {
		var err error
		if id, err = os.Hostname(); err != nil {
			return nil, err
		}
	}
	if id == "" {
		return nil, errors.New("empty server id")
	}
	return &Handler{nsid: hex.EncodeToString([]byte(id))}, nil
}

// ServeDNS implements the [plugin.Handler] interface.
func (h *Handler) ServeDNS(ctx context.Context, w dns.ResponseWriter, r *dns.Msg) (int, error) {
	if opt := r.IsEdns0(); opt != nil {
		for _, option := range opt.Option {
			if option.Option() == dns.EDNS0NSID {
				w = nsidResponseWriter{ResponseWriter: w, nsid: h.nsid}
				break
			}
		}
	}
	return plugin.NextOrFailure(h.Name(), h.Next, ctx, w, r)
}

// Name implements the [plugin.Handler] interface.
func (h *Handler) Name() string { return "nsid" }

type nsidResponseWriter struct {
	dns.ResponseWriter
	nsid string
}

// WriteMsg overrides the implementation from w.ResponseWriter. An NSID
// option copied from the request is replaced.
func (w nsidResponseWriter) WriteMsg(response *dns.Msg) error {
	opt := response.IsEdns0()
	if opt == nil {
		glog.V(1).Infof("no EDNS for NSID")
		return w.ResponseWriter.WriteMsg(response)
	}
	kept := opt.Option[:0]
	for _, o := range opt.Option {
		if o.Option() != dns.EDNS0NSID {
			kept = append(kept, o)
		}
	}
	opt.Option = append(kept, &dns.EDNS0_NSID{Code: dns.EDNS0NSID, Nsid: w.nsid})
	return w.ResponseWriter.WriteMsg(response)
}
