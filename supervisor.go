package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/across-iot/cellgw/arbiter"
	"github.com/across-iot/cellgw/transport"
)

const (
	// maxReconnectAttempts bounds the Supervisor's reconnect loop; beyond
	// this it gives up and returns, letting the process exit.
	maxReconnectAttempts = 100
	// connMonitorInterval is how often the Supervisor logs the current
	// connection state while waiting on a live arbiter.
	connMonitorInterval = 30 * time.Second
)

// Supervisor owns the transport/arbiter lifecycle: it builds a fresh
// transport.Transport on every (re)connect, drives the post-connect reinit
// sequence, and publishes the resulting *arbiter.Arbiter through handle so
// the rest of the gateway can keep sending commands across reconnects.
type Supervisor struct {
	cfg    *Config
	handle *arbiterHandle
	log    *slog.Logger

	onConnected func(ctx context.Context, arb *arbiter.Arbiter)
}

// NewSupervisor creates a Supervisor. onConnected, if non-nil, runs once
// per successful (re)connect, after reinit, before the Supervisor starts
// waiting on disconnect; use it to reset per-connection handler state (e.g.
// urc.MemoryFullHandler.Reset).
func NewSupervisor(cfg *Config, handle *arbiterHandle, log *slog.Logger, onConnected func(context.Context, *arbiter.Arbiter)) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{cfg: cfg, handle: handle, log: log, onConnected: onConnected}
}

// buildTransport constructs the configured transport variant. It never
// opens the connection.
func (s *Supervisor) buildTransport() (transport.Transport, error) {
	switch strings.ToUpper(s.cfg.TransportType) {
	case "NETWORK":
		return transport.NewTCP(s.cfg.NetworkHost, s.cfg.NetworkPort, s.cfg.NetworkTimeout), nil
	case "SERIAL":
		if strings.ToUpper(s.cfg.SerialMethod) == "HELPER" {
			return transport.NewHelper(s.cfg.SerialPort, s.cfg.SerialFeature), nil
		}
		return transport.NewSerial(s.cfg.SerialPort, s.cfg.BaudRate), nil
	default:
		return nil, fmt.Errorf("supervisor: unknown transport type %q", s.cfg.TransportType)
	}
}

// Run drives the connect/reinit/monitor/reconnect loop until ctx is
// canceled or the reconnect attempt cap is exhausted.
func (s *Supervisor) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		t, err := s.buildTransport()
		if err != nil {
			s.log.Error("supervisor: cannot build transport", "error", err)
			return
		}

		if !t.Open() {
			attempt++
			s.log.Warn("supervisor: failed to open transport", "attempt", attempt)
			if !s.backoff(ctx, attempt) {
				return
			}
			continue
		}

		runCtx, cancel := context.WithCancel(ctx)
		arb := arbiter.New(t, s.log.With("component", "arbiter"))
		go arb.Run(runCtx)

		if err := s.reinit(runCtx, arb); err != nil {
			s.log.Error("supervisor: reinit failed", "error", err)
			cancel()
			t.Close()
			attempt++
			if !s.backoff(ctx, attempt) {
				return
			}
			continue
		}

		attempt = 0
		s.handle.set(arb)
		s.log.Info("supervisor: modem connected")
		if s.onConnected != nil {
			s.onConnected(runCtx, arb)
		}

		s.monitor(runCtx, arb)

		s.handle.set(nil)
		cancel()
		t.Close()
		s.log.Warn("supervisor: modem disconnected")

		if ctx.Err() != nil {
			return
		}
		attempt++
		if attempt > maxReconnectAttempts {
			s.log.Error("supervisor: exhausted reconnect attempts, giving up", "attempts", attempt)
			return
		}
	}
}

// monitor blocks until the arbiter disconnects or ctx is canceled, logging
// the connection state on connMonitorInterval.
func (s *Supervisor) monitor(ctx context.Context, arb *arbiter.Arbiter) {
	ticker := time.NewTicker(connMonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-arb.Disconnected():
			return
		case <-ticker.C:
			s.log.Debug("supervisor: connection monitor tick", "connected", true)
		}
	}
}

// backoff waits before the next reconnect attempt: 5s*attempt for the first
// 3 attempts, then a fixed 60s. It returns false if ctx is canceled first or
// the attempt cap is exceeded.
func (s *Supervisor) backoff(ctx context.Context, attempt int) bool {
	if attempt > maxReconnectAttempts {
		s.log.Error("supervisor: exhausted reconnect attempts, giving up", "attempts", attempt)
		return false
	}
	delay := 60 * time.Second
	if attempt <= 3 {
		delay = time.Duration(attempt) * 5 * time.Second
	}
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// reinit runs the post-connect command sequence: ATE0 defensively, optional
// SIM-PIN entry, an informational AT+GCAP probe, and the CNMI/CMGF/CLIP
// trio the core requires. CNMI and CMGF are skipped if already set; CLIP=1
// is always sent.
func (s *Supervisor) reinit(ctx context.Context, arb *arbiter.Arbiter) error {
	if rsp := arb.Send(ctx, "E0"); rsp.Err != nil {
		return fmt.Errorf("ATE0: %w", rsp.Err)
	}

	if s.cfg.SimPIN != "" {
		rsp := arb.Send(ctx, "+CPIN?")
		if rsp.Err != nil {
			return fmt.Errorf("AT+CPIN?: %w", rsp.Err)
		}
		if !containsAny(rsp.Body, "+CPIN: READY") {
			if rsp := arb.Send(ctx, fmt.Sprintf(`+CPIN="%s"`, s.cfg.SimPIN)); rsp.Err != nil {
				return fmt.Errorf("AT+CPIN=: %w", rsp.Err)
			}
		}
	}

	if rsp := arb.Send(ctx, "+GCAP"); rsp.Err == nil {
		s.log.Info("supervisor: modem capabilities", "gcap", rsp.Body)
	}

	cnmi := arb.Send(ctx, "+CNMI?")
	if cnmi.Err != nil || !containsAny(cnmi.Body, "+CNMI: 2,1,0,2,0") {
		if rsp := arb.Send(ctx, "+CNMI=2,1,0,2,0"); rsp.Err != nil {
			return fmt.Errorf("AT+CNMI=: %w", rsp.Err)
		}
	}

	cmgf := arb.Send(ctx, "+CMGF?")
	if cmgf.Err != nil || !containsAny(cmgf.Body, "+CMGF: 0") {
		if rsp := arb.Send(ctx, "+CMGF=0"); rsp.Err != nil {
			return fmt.Errorf("AT+CMGF=: %w", rsp.Err)
		}
	}

	if rsp := arb.Send(ctx, "+CLIP=1"); rsp.Err != nil {
		return fmt.Errorf("AT+CLIP=: %w", rsp.Err)
	}

	return nil
}

func containsAny(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
