package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/across-iot/cellgw/arbiter"
	"github.com/across-iot/cellgw/notify"
	"github.com/across-iot/cellgw/reassembly"
	"github.com/across-iot/cellgw/schedule"
	"github.com/across-iot/cellgw/urc"
	"github.com/across-iot/cellgw/wshub"
)

func main() {
	fs := flag.NewFlagSet("cellgw", flag.ExitOnError)
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("sim-pin", "", "SIM card PIN code (if required)")
	fs.String("transport-type", "SERIAL", "Modem transport: NETWORK or SERIAL")
	fs.String("network-host", "", "TCP modem host (NETWORK transport)")
	fs.Int("network-port", 7777, "TCP modem port (NETWORK transport)")
	fs.String("serial-port", "/dev/ttyUSB0", "Serial device path (SERIAL transport)")
	fs.Int("baud-rate", 115200, "Serial baud rate (SERIAL transport)")
	fs.String("serial-method", "DIRECT", "Serial method: DIRECT or HELPER")
	fs.String("serial-feature", "", "Helper feature flag (SERIAL/HELPER method)")
	fs.Int("ws-port", 8765, "WebSocket listen port")
	fs.String("ws-auth-key", "", "WebSocket auth key (empty disables auth)")
	fs.String("webhook-url", "", "Notification webhook URL (empty disables)")
	fs.String("log-file", "", "Notification log file path (empty disables)")
	fs.Bool("schedule-enabled", false, "Enable the day/night band-lock controller")
	fs.Parse(os.Args[1:])

	cfg, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fs))
	if err != nil {
		slog.Error("cellgw: failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(cfg, logger)
	if err != nil {
		logger.Error("cellgw: failed to build application", "error", err)
		os.Exit(1)
	}

	app.Run(ctx)
	logger.Info("cellgw: shutdown complete")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// App holds every long-running component the Supervisor, dispatcher and
// servers need, wired once at startup.
type App struct {
	cfg *Config
	log *slog.Logger

	handle     *arbiterHandle
	supervisor *Supervisor

	store      *reassembly.Store
	events     chan urc.Event
	dispatcher *urc.Dispatcher
	memHandler *urc.MemoryFullHandler

	hub       *wshub.Hub
	wsServer  *wshub.Server
	notifyMgr *notify.Manager
	scheduler *schedule.Controller
}

// buildApp constructs every component described in SPEC_FULL.md and wires
// them through the arbiterHandle indirection, without starting any of their
// background loops.
func buildApp(cfg *Config, log *slog.Logger) (*App, error) {
	handle := &arbiterHandle{}

	events := make(chan urc.Event, 256)
	store := reassembly.New()

	callHandler := urc.NewCallHandler(events)
	memHandler := urc.NewMemoryFullHandler(events)
	smsHandler := urc.NewNewSmsHandler(urcSenderAdapter{handle}, store, events)
	signalHandler := urc.NewSignalHandler(urcSenderAdapter{handle}, events)
	pdcpHandler := urc.NewPdcpHandler(events)
	rawHandler := urc.NewRawDataHandler(events)

	dispatcher := urc.NewDispatcher(callHandler, memHandler, smsHandler, signalHandler, pdcpHandler, rawHandler)

	hub := wshub.NewHub(cfg.WSAuthKey, hubSenderAdapter{handle}, log.With("component", "wshub"))
	wsServer := wshub.NewServer(hub)

	var channels []notify.Channel
	if cfg.WebhookURL != "" {
		channels = append(channels, notify.NewWebhook(cfg.WebhookURL, log.With("component", "notify.webhook")))
	}
	if cfg.LogFilePath != "" {
		lf, err := notify.NewLogFile(cfg.LogFilePath)
		if err != nil {
			log.Error("cellgw: log-file notification sink disabled", "error", err)
		} else {
			channels = append(channels, lf)
		}
	}
	enabled := map[string]bool{
		urc.KindNewSMS:       cfg.NotifySMS,
		urc.KindIncomingCall: cfg.NotifyCall,
		urc.KindMemoryFull:   cfg.NotifyMemoryFull,
		urc.KindSignal:       cfg.NotifySignal,
	}
	notifyMgr := notify.NewManager(enabled, log.With("component", "notify"), channels...)

	var scheduler *schedule.Controller
	if cfg.Schedule.Enabled {
		scheduler = schedule.NewController(cfg.Schedule, scheduleSenderAdapter{handle}, log.With("component", "schedule"))
	}

	app := &App{
		cfg:        cfg,
		log:        log,
		handle:     handle,
		store:      store,
		events:     events,
		dispatcher: dispatcher,
		memHandler: memHandler,
		hub:        hub,
		wsServer:   wsServer,
		notifyMgr:  notifyMgr,
		scheduler:  scheduler,
	}

	app.supervisor = NewSupervisor(cfg, handle, log.With("component", "supervisor"), app.onConnected)

	return app, nil
}

// onConnected runs once per successful (re)connect: it resets per-connection
// handler state and starts the dispatcher feeding off the new arbiter's URC
// stream.
func (a *App) onConnected(ctx context.Context, arb *arbiter.Arbiter) {
	a.memHandler.Reset()
	go a.dispatcher.Run(ctx, arb.URCs())
}

// Run starts every background component and blocks until ctx is canceled
// and the Supervisor has returned. It does not wait for the other
// components' goroutines to exit.
func (a *App) Run(ctx context.Context) {
	go a.pumpEvents(ctx)
	go a.hub.Run(ctx)
	a.notifyMgr.Run(ctx)

	if a.scheduler != nil {
		go a.scheduler.Run(ctx)
	}

	go func() {
		if err := a.wsServer.ListenAndServe(ctx, a.cfg.WSPort); err != nil {
			a.log.Error("cellgw: websocket server stopped", "error", err)
		}
	}()

	a.supervisor.Run(ctx)
	<-ctx.Done()
}

// pumpEvents fans out every dispatched urc.Event to the WebSocket broadcast
// and, when it carries NotifyText, to the notification Manager.
func (a *App) pumpEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.events:
			if !ok {
				return
			}
			a.hub.Broadcast(map[string]any{"type": evt.Kind, "data": evt.Payload})
			if evt.NotifyText != "" {
				a.notifyMgr.Publish(evt.Kind, senderLabel(evt.Payload), evt.NotifyText)
			}
		}
	}
}

// senderLabel extracts a human label (phone number) from an event payload
// for the notification digest, if present.
func senderLabel(payload any) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	if v, ok := m["sender"].(string); ok {
		return v
	}
	if v, ok := m["number"].(string); ok {
		return v
	}
	return ""
}
