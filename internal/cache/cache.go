// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache holds the results of debugger queries for as long as the
// target state they describe is valid.
//
// Cache is not safe for concurrent use. Every method, and every completion
// the transport delivers, must run on the session's dispatch executor.
package cache

import (
	"log/slog"

	"github.com/tombee/runcontrol/internal/execctx"
	"github.com/tombee/runcontrol/internal/log"
	"github.com/tombee/runcontrol/internal/protocol"
	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

// Config contains cache configuration.
type Config struct {
	// Transport receives commands that miss the cache. Its completions
	// must be delivered on the executor that owns the cache.
	Transport protocol.Transport

	// Logger for cache operations. If nil, logging is discarded.
	Logger *slog.Logger
}

// Stats counts cache traffic since the cache was created.
type Stats struct {
	Hits      int
	Misses    int
	Coalesced int
	Rejected  int
}

type entry struct {
	cmd    protocol.Command
	result protocol.Result
}

type inflight struct {
	cmd     protocol.Command
	waiters []protocol.CompletionFunc
	// stale is set when an invalidation covered cmd while it was queued.
	stale bool
}

// Cache stores the latest successful result per command key and tracks
// which contexts are available for querying.
type Cache struct {
	transport protocol.Transport
	logger    *slog.Logger

	entries     map[string]entry
	pending     map[string]*inflight
	unavailable map[execctx.Context]struct{}
	stats       Stats
}

// New creates an empty cache in front of cfg.Transport.
func New(cfg Config) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Cache{
		transport:   cfg.Transport,
		logger:      log.WithComponent(logger, "cache"),
		entries:     make(map[string]entry),
		pending:     make(map[string]*inflight),
		unavailable: make(map[execctx.Context]struct{}),
	}
}

// SetAvailability marks ctx unavailable, which covers all of its
// descendants, or clears the mark on ctx and every descendant.
func (c *Cache) SetAvailability(ctx execctx.Context, available bool) {
	if ctx == nil {
		return
	}
	if !available {
		c.unavailable[ctx] = struct{}{}
		return
	}
	for marked := range c.unavailable {
		if execctx.IsAncestorOf(ctx, marked) {
			delete(c.unavailable, marked)
		}
	}
}

// IsAvailable reports whether neither ctx nor any of its ancestors is
// marked unavailable.
func (c *Cache) IsAvailable(ctx execctx.Context) bool {
	for cur := ctx; cur != nil; cur = cur.Parent() {
		if _, ok := c.unavailable[cur]; ok {
			return false
		}
	}
	return true
}

// Execute answers cmd from the cache when possible and otherwise sends it
// to the transport. done is called exactly once; on a hit it is called
// before Execute returns.
//
// Requests whose context is unavailable fail with an invalid-state error
// without reaching the transport. A request identical to one already in
// flight waits for that command instead of issuing another.
func (c *Cache) Execute(cmd protocol.Command, done protocol.CompletionFunc) {
	if cmd.Context != nil && !c.IsAvailable(cmd.Context) {
		c.stats.Rejected++
		done(nil, rcerrors.NewControlError(rcerrors.KindInvalidState,
			cmd.Kind.Operation(), cmd.Context.String(), "target not available"))
		return
	}

	key := cmd.Key()
	if e, ok := c.entries[key]; ok {
		c.stats.Hits++
		log.Trace(c.logger, "cache hit", log.Command(string(cmd.Kind)), log.Context(cmd.Context))
		done(e.result, nil)
		return
	}

	if req, ok := c.pending[key]; ok {
		c.stats.Coalesced++
		req.waiters = append(req.waiters, done)
		return
	}

	c.stats.Misses++
	req := &inflight{cmd: cmd, waiters: []protocol.CompletionFunc{done}}
	c.pending[key] = req
	c.transport.QueueCommand(cmd, func(result protocol.Result, err error) {
		c.complete(key, req, result, err)
	})
}

func (c *Cache) complete(key string, req *inflight, result protocol.Result, err error) {
	if c.pending[key] == req {
		delete(c.pending, key)
	}

	switch {
	case err != nil:
		c.logger.Debug("command failed", log.Command(string(req.cmd.Kind)), log.Error(err))
	case req.stale:
		log.Trace(c.logger, "discarding result invalidated in flight", log.Command(string(req.cmd.Kind)))
	default:
		c.entries[key] = entry{cmd: req.cmd, result: result}
	}

	for _, waiter := range req.waiters {
		waiter(result, err)
	}
}

// Invalidate drops every entry whose command context is ctx or one of its
// descendants, and keeps results of matching in-flight commands out of the
// cache. A nil ctx drops everything.
func (c *Cache) Invalidate(ctx execctx.Context) {
	for key, e := range c.entries {
		if covers(ctx, e.cmd.Context) {
			delete(c.entries, key)
		}
	}
	for _, req := range c.pending {
		if covers(ctx, req.cmd.Context) {
			req.stale = true
		}
	}
}

// Reset drops all entries and availability marks. Commands in flight still
// complete, but their results are not stored.
func (c *Cache) Reset() {
	c.Invalidate(nil)
	clear(c.unavailable)
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Stats returns a copy of the traffic counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

func covers(scope, ctx execctx.Context) bool {
	return scope == nil || execctx.IsAncestorOf(scope, ctx)
}
