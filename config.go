package main

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/across-iot/cellgw/schedule"
)

// Config holds the application configuration: everything needed to
// construct the transport, the WebSocket hub, the notification channels
// and the schedule controller.
type Config struct {
	// LogLevel sets the logging level ("debug", "info", "warn", "error").
	LogLevel string
	// SimPIN is the SIM card PIN code, applied during Supervisor reinit.
	SimPIN string

	// TransportType selects the modem transport: "NETWORK" or "SERIAL".
	TransportType string

	// NetworkHost/NetworkPort/NetworkTimeout configure the NETWORK transport.
	NetworkHost    string
	NetworkPort    int
	NetworkTimeout time.Duration

	// SerialPort/BaudRate/SerialTimeout/SerialMethod/SerialFeature configure
	// the SERIAL transport. SerialMethod is "DIRECT" or "HELPER"; when
	// "HELPER", SerialFeature is passed as the helper's feature flag.
	SerialPort    string
	BaudRate      int
	SerialTimeout time.Duration
	SerialMethod  string
	SerialFeature string

	// WSPort/WSAuthKey configure the WebSocket hub. An empty WSAuthKey
	// disables the auth gate.
	WSPort    int
	WSAuthKey string

	// WebhookURL/LogFilePath configure the two notification sinks; either
	// may be left empty to disable that sink.
	WebhookURL  string
	LogFilePath string

	// NotifySMS/NotifyCall/NotifyMemoryFull/NotifySignal are per-kind enable
	// flags, gating notifications (never the WebSocket broadcast) per kind.
	NotifySMS        bool
	NotifyCall       bool
	NotifyMemoryFull bool
	NotifySignal     bool

	// Schedule carries the day/night band-lock controller's configuration.
	Schedule schedule.Config
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.LogLevel = "info"

		c.TransportType = "SERIAL"
		c.NetworkPort = 7777
		c.NetworkTimeout = 5 * time.Second

		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.SerialTimeout = 150 * time.Millisecond
		c.SerialMethod = "DIRECT"

		c.WSPort = 8765

		c.NotifySMS = true
		c.NotifyCall = true
		c.NotifyMemoryFull = true
		c.NotifySignal = true

		c.Schedule = schedule.Config{
			Enabled:           false,
			NightStartMinutes: 22 * 60,
			NightEndMinutes:   6 * 60,
			CheckInterval:     60 * time.Second,
			WatchdogTimeout:   180 * time.Second,
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables. List-valued
// schedule fields (bands/arfcns/pcis/scs) are only configurable via
// environment variables, as comma-separated integers, since flag.FlagSet
// has no native list type.
func WithEnv() ConfigOption {
	return func(c *Config) error {
		strVar(&c.LogLevel, "LOG_LEVEL")
		strVar(&c.SimPIN, "SIM_PIN")

		strVar(&c.TransportType, "TRANSPORT_TYPE")
		strVar(&c.NetworkHost, "NETWORK_HOST")
		intVar(&c.NetworkPort, "NETWORK_PORT")
		durVar(&c.NetworkTimeout, "NETWORK_TIMEOUT_S")

		strVar(&c.SerialPort, "SERIAL_PORT")
		intVar(&c.BaudRate, "BAUD_RATE")
		durVar(&c.SerialTimeout, "SERIAL_TIMEOUT_S")
		strVar(&c.SerialMethod, "SERIAL_METHOD")
		strVar(&c.SerialFeature, "SERIAL_FEATURE")

		intVar(&c.WSPort, "WS_PORT")
		strVar(&c.WSAuthKey, "WS_AUTH_KEY")

		strVar(&c.WebhookURL, "WEBHOOK_URL")
		strVar(&c.LogFilePath, "LOG_FILE")

		boolVar(&c.NotifySMS, "NOTIFY_SMS")
		boolVar(&c.NotifyCall, "NOTIFY_CALL")
		boolVar(&c.NotifyMemoryFull, "NOTIFY_MEMORY_FULL")
		boolVar(&c.NotifySignal, "NOTIFY_SIGNAL")

		boolVar(&c.Schedule.Enabled, "SCHEDULE_ENABLED")
		durVar(&c.Schedule.CheckInterval, "SCHEDULE_CHECK_INTERVAL_S")
		durVar(&c.Schedule.WatchdogTimeout, "SCHEDULE_NO_SERVICE_TIMEOUT_S")
		boolVar(&c.Schedule.UnlockLTE, "SCHEDULE_UNLOCK_LTE")
		boolVar(&c.Schedule.UnlockNR, "SCHEDULE_UNLOCK_NR")
		boolVar(&c.Schedule.ToggleAirplane, "SCHEDULE_TOGGLE_AIRPLANE")
		intVar(&c.Schedule.NightStartMinutes, "SCHEDULE_NIGHT_START_MINUTES")
		intVar(&c.Schedule.NightEndMinutes, "SCHEDULE_NIGHT_END_MINUTES")

		loadBandLock(&c.Schedule.DayLTE, "SCHEDULE_DAY_LTE")
		loadBandLock(&c.Schedule.NightLTE, "SCHEDULE_NIGHT_LTE")
		loadBandLock(&c.Schedule.DayNR, "SCHEDULE_DAY_NR")
		loadBandLock(&c.Schedule.NightNR, "SCHEDULE_NIGHT_NR")

		return nil
	}
}

// loadBandLock populates a schedule.BandLock from the
// "<prefix>_TYPE|_BANDS|_ARFCNS|_PCIS|_SCS" environment variables.
func loadBandLock(lock *schedule.BandLock, prefix string) {
	intVar(&lock.Type, prefix+"_TYPE")
	lock.Bands = intListVar(lock.Bands, prefix+"_BANDS")
	lock.ARFCNs = intListVar(lock.ARFCNs, prefix+"_ARFCNS")
	lock.PCIs = intListVar(lock.PCIs, prefix+"_PCIS")
	lock.SCS = intListVar(lock.SCS, prefix+"_SCS")
}

func strVar(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func intVar(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func boolVar(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func durVar(dst *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func intListVar(existing []int, env string) []int {
	v := os.Getenv(env)
	if v == "" {
		return existing
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// WithFlags loads configuration from command-line flags. Only scalar
// fields are exposed as flags; list-valued schedule fields are
// environment-only (see WithEnv).
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "log-level":
				c.LogLevel = f.Value.String()
			case "sim-pin":
				c.SimPIN = f.Value.String()
			case "transport-type":
				c.TransportType = f.Value.String()
			case "network-host":
				c.NetworkHost = f.Value.String()
			case "network-port":
				if n, err := strconv.Atoi(f.Value.String()); err == nil {
					c.NetworkPort = n
				}
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if n, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = n
				}
			case "serial-method":
				c.SerialMethod = f.Value.String()
			case "serial-feature":
				c.SerialFeature = f.Value.String()
			case "ws-port":
				if n, err := strconv.Atoi(f.Value.String()); err == nil {
					c.WSPort = n
				}
			case "ws-auth-key":
				c.WSAuthKey = f.Value.String()
			case "webhook-url":
				c.WebhookURL = f.Value.String()
			case "log-file":
				c.LogFilePath = f.Value.String()
			case "schedule-enabled":
				if b, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.Schedule.Enabled = b
				}
			}
		})
		return nil
	}
}
