// Package client is the automation side of a run: it waits for the
// orchestrator to finish or ask for coverage, and hands coverage data over.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/coverage"
)

// Signal is what Await observed.
type Signal int

const (
	// SignalEnded means the run is over.
	SignalEnded Signal = iota + 1

	// SignalCoverageRequested means the orchestrator waits for coverage.
	SignalCoverageRequested
)

func (s Signal) String() string {
	switch s {
	case SignalEnded:
		return "ended"
	case SignalCoverageRequested:
		return "coverage-requested"
	default:
		return "unknown"
	}
}

// Client talks to an orchestrator over a bus.
type Client struct {
	bus    *bus.Bus
	logger *slog.Logger
}

// New creates a client for b.
func New(b *bus.Bus) *Client {
	return &Client{bus: b, logger: slog.Default()}
}

// Await pings the orchestrator and blocks until it ends or requests coverage.
// The ping makes a run that already reached either state answer right away.
func (c *Client) Await(ctx context.Context) (Signal, error) {
	sub := c.bus.Subscribe()
	defer sub.Close()

	if err := c.bus.Publish(bus.ClientPing{}); err != nil {
		return 0, fmt.Errorf("ping: %w", err)
	}
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return 0, fmt.Errorf("await run: %w", err)
		}
		switch m := msg.(type) {
		case bus.RootCoverageRequest:
			return SignalCoverageRequested, nil
		case bus.RootEnd:
			return SignalEnded, nil
		case bus.RootPong:
			c.logger.Debug("pong", "ended", m.Ended, "waiting", m.Waiting)
			if m.Ended {
				return SignalEnded, nil
			}
			if m.Waiting {
				return SignalCoverageRequested, nil
			}
		}
	}
}

// Cover delivers coverage for the whole run and blocks until the run ends.
func (c *Client) Cover(ctx context.Context, entries []coverage.Entry) error {
	sub := c.bus.Subscribe()
	defer sub.Close()

	if err := c.bus.Publish(bus.ClientCoverageResult{JS: entries}); err != nil {
		return fmt.Errorf("deliver coverage: %w", err)
	}
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return fmt.Errorf("await end: %w", err)
		}
		if _, ok := msg.(bus.RootEnd); ok {
			return nil
		}
	}
}

// ReadCoverage decodes coverage data. It accepts the bare entry list emitted
// by browser coverage tools, or a complete coverage-result message as
// written by a recorded run.
func ReadCoverage(r io.Reader) ([]coverage.Entry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read coverage: %w", err)
	}

	var entries []coverage.Entry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}
	msg, err := bus.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode coverage: %w", err)
	}
	result, ok := msg.(bus.ClientCoverageResult)
	if !ok {
		return nil, fmt.Errorf("decode coverage: expected %s, got %s", bus.TypeClientCoverageResult, msg.Type())
	}
	return result.JS, nil
}
