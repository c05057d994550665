// Package netprobe checks that the network is usable before the bridge
// makes its first broker connection.
//
// The Wink Relay's Wi-Fi often comes up after the bridge process starts, so
// startup polls a known TCP endpoint for a bounded number of attempts
// instead of letting the first MQTT connect fail.
package netprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ErrUnreachable is returned when every attempt failed.
var ErrUnreachable = errors.New("netprobe: target unreachable")

const defaultDialTimeout = 3 * time.Second

// Config describes the probe target and retry policy.
type Config struct {
	Address string
	Port    int

	// Count is the number of attempts. Zero or less disables the probe.
	Count int

	// Wait is the pause between attempts.
	Wait time.Duration

	// DialTimeout bounds a single attempt. Zero means 3s.
	DialTimeout time.Duration
}

// Logger is the subset of the bridge logger used by the probe.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Prober dials a TCP endpoint until it answers.
type Prober struct {
	cfg    Config
	logger Logger
	dial   func(ctx context.Context, network, address string) (net.Conn, error)
}

// New creates a Prober. logger may be nil.
func New(cfg Config, logger Logger) *Prober {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	var d net.Dialer
	return &Prober{
		cfg:    cfg,
		logger: logger,
		dial:   d.DialContext,
	}
}

// Target returns the host:port being probed.
func (p *Prober) Target() string {
	return net.JoinHostPort(p.cfg.Address, strconv.Itoa(p.cfg.Port))
}

// Wait blocks until the target accepts a TCP connection, the attempts are
// exhausted (ErrUnreachable) or ctx is cancelled.
func (p *Prober) Wait(ctx context.Context) error {
	if p.cfg.Count <= 0 {
		return nil
	}

	addr := p.Target()
	var lastErr error
	for attempt := 1; attempt <= p.cfg.Count; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
		conn, err := p.dial(dialCtx, "tcp", addr)
		cancel()
		if err == nil {
			conn.Close()
			p.info("network reachable", "target", addr, "attempt", attempt)
			return nil
		}
		lastErr = err
		p.warn("network probe failed", "target", addr, "attempt", attempt, "of", p.cfg.Count, "error", err)

		if attempt == p.cfg.Count {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("probing %s: %w", addr, ctx.Err())
		case <-time.After(p.cfg.Wait):
		}
	}

	return fmt.Errorf("%w: %s after %d attempts: %w", ErrUnreachable, addr, p.cfg.Count, lastErr)
}

func (p *Prober) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Prober) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
