// Package schedule implements the day/night band-lock controller and the
// no-service watchdog that drives the AT arbiter with a scripted
// airplane-mode/frequency-lock sequence.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Mode is the controller's current target state.
type Mode int

const (
	// ModeUnlocked means band locking is disabled entirely.
	ModeUnlocked Mode = iota
	// ModeDay is the daytime band configuration.
	ModeDay
	// ModeNight is the nighttime band configuration.
	ModeNight
)

func (m Mode) String() string {
	switch m {
	case ModeDay:
		return "day"
	case ModeNight:
		return "night"
	default:
		return "unlocked"
	}
}

// Sender issues an AT command and waits for its response.
type Sender interface {
	Send(ctx context.Context, cmd string) Response
}

// Response mirrors the fields of arbiter.Response the scheduler needs.
type Response struct {
	OK   bool
	Body []string
	Err  error
}

// nrScsTable auto-derives the SCS type for an NR band lacking an explicit
// value, per the mapping in the band-lock scripting spec.
var nrScsTable = map[int]int{
	78: 1, 79: 1, 258: 1, 260: 1, 41: 1, 77: 1,
	28: 0, 71: 0,
}

// BandLock is a per-mode, per-RAT lock configuration: Type 0 means no lock
// command is issued for that RAT in that mode, 1 is an EARFCN/ARFCN lock,
// 2 is a cell lock (adds PCIs), matching the `^LTEFREQLOCK`/`^NRFREQLOCK`
// command shapes.
type BandLock struct {
	Type   int
	Bands  []int
	ARFCNs []int
	PCIs   []int
	SCS    []int // NR only; auto-derived from nrScsTable when empty
}

// Config is the static configuration for the Controller.
type Config struct {
	Enabled bool

	NightStartMinutes int // minutes since midnight
	NightEndMinutes   int

	ToggleAirplane bool
	UnlockLTE      bool
	UnlockNR       bool

	DayLTE, NightLTE BandLock
	DayNR, NightNR   BandLock

	CheckInterval   time.Duration // default 60s
	WatchdogTimeout time.Duration // default 180s
}

// Controller polls wall-clock time and modem registration state, applying
// the scripted band-lock sequence on mode transitions and recovering from
// prolonged loss of service.
type Controller struct {
	cfg    Config
	sender Sender
	log    *slog.Logger
	now    func() time.Time

	lastApplied      Mode
	lastServiceSeen  time.Time
}

// NewController creates a Controller. Zero CheckInterval/WatchdogTimeout in
// cfg are replaced with their defaults (60s / 180s).
func NewController(cfg Config, sender Sender, log *slog.Logger) *Controller {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 60 * time.Second
	}
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = 180 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{cfg: cfg, sender: sender, log: log, now: time.Now, lastApplied: ModeUnlocked}
}

// Run polls on Config.CheckInterval until ctx is canceled.
func (c *Controller) Run(ctx context.Context) {
	c.lastServiceSeen = c.now()
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	target := c.targetMode()
	if target != c.lastApplied {
		c.applySequence(ctx, target)
		c.lastApplied = target
	}
	c.checkWatchdog(ctx)
}

// targetMode computes day/night/unlocked from the current wall-clock time,
// handling the wrap-across-midnight window.
func (c *Controller) targetMode() Mode {
	if !c.cfg.Enabled {
		return ModeUnlocked
	}
	t := c.now()
	minutes := t.Hour()*60 + t.Minute()

	start, end := c.cfg.NightStartMinutes, c.cfg.NightEndMinutes
	var inNight bool
	if start > end {
		inNight = minutes >= start || minutes < end
	} else {
		inNight = minutes >= start && minutes < end
	}
	if inNight {
		return ModeNight
	}
	return ModeDay
}

// applySequence runs the scripted airplane-mode/frequency-lock sequence for
// a transition into target.
func (c *Controller) applySequence(ctx context.Context, target Mode) {
	if c.cfg.ToggleAirplane {
		c.send(ctx, "+CFUN=0")
		c.sleep(ctx, 2*time.Second)
	}

	c.applyLTE(ctx, target)
	c.sleep(ctx, time.Second)
	c.applyNR(ctx, target)

	if c.cfg.ToggleAirplane {
		c.send(ctx, "+CFUN=1")
		c.sleep(ctx, 3*time.Second)
	}
}

// lteLockFor picks the configured LTE lock for the target mode.
func (c *Controller) lteLockFor(target Mode) BandLock {
	if target == ModeNight {
		return c.cfg.NightLTE
	}
	return c.cfg.DayLTE
}

// nrLockFor picks the configured NR lock for the target mode.
func (c *Controller) nrLockFor(target Mode) BandLock {
	if target == ModeNight {
		return c.cfg.NightNR
	}
	return c.cfg.DayNR
}

func (c *Controller) applyLTE(ctx context.Context, target Mode) {
	if target == ModeUnlocked {
		if c.cfg.UnlockLTE {
			c.send(ctx, "^LTEFREQLOCK=0")
		}
		return
	}
	lock := c.lteLockFor(target)
	if lock.Type <= 0 {
		if c.cfg.UnlockLTE {
			c.send(ctx, "^LTEFREQLOCK=0")
		}
		return
	}
	if !validLocking(lock.Type, lock.Bands, lock.ARFCNs, lock.PCIs) {
		c.log.Warn("schedule: mismatched LTE lock lists, falling back to unlock")
		c.send(ctx, "^LTEFREQLOCK=0")
		return
	}
	cmd := fmt.Sprintf(`^LTEFREQLOCK=%d,0,%d,"%s"`, lock.Type, len(lock.Bands), joinInts(lock.Bands))
	if lock.Type >= 1 && len(lock.ARFCNs) > 0 {
		cmd += fmt.Sprintf(`,"%s"`, joinInts(lock.ARFCNs))
	}
	if lock.Type >= 2 && len(lock.PCIs) > 0 {
		cmd += fmt.Sprintf(`,"%s"`, joinInts(lock.PCIs))
	}
	c.send(ctx, cmd)
}

func (c *Controller) applyNR(ctx context.Context, target Mode) {
	lock := c.nrLockFor(target)
	if target == ModeUnlocked || lock.Type <= 0 {
		if c.cfg.UnlockNR {
			c.send(ctx, "^NRFREQLOCK=0")
		}
		return
	}
	if !validLocking(lock.Type, lock.Bands, lock.ARFCNs, lock.PCIs) {
		c.log.Warn("schedule: mismatched NR lock lists, falling back to unlock")
		c.send(ctx, "^NRFREQLOCK=0")
		return
	}

	scs := lock.SCS
	if len(scs) == 0 {
		scs = make([]int, len(lock.Bands))
		for i, band := range lock.Bands {
			v, ok := nrScsTable[band]
			if !ok {
				v = 1
			}
			scs[i] = v
		}
	}

	cmd := fmt.Sprintf(`^NRFREQLOCK=%d,0,%d,"%s","%s"`, lock.Type, len(lock.Bands), joinInts(lock.Bands), joinInts(scs))
	if lock.Type >= 1 && len(lock.ARFCNs) > 0 {
		cmd += fmt.Sprintf(`,"%s"`, joinInts(lock.ARFCNs))
	}
	if lock.Type >= 2 && len(lock.PCIs) > 0 {
		cmd += fmt.Sprintf(`,"%s"`, joinInts(lock.PCIs))
	}
	c.send(ctx, cmd)
}

// validLocking checks the band/arfcn/pci list-length agreement required by
// lock type 1 (EARFCN lock, needs bands+arfcns) and type 2 (cell lock, needs
// bands+arfcns+pcis).
func validLocking(lockType int, bands, arfcns, pcis []int) bool {
	if len(bands) == 0 {
		return false
	}
	switch lockType {
	case 1:
		return len(arfcns) == len(bands)
	case 2:
		return len(arfcns) == len(bands) && len(pcis) == len(bands)
	default:
		return true
	}
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// checkWatchdog polls registration state and unlocks if no service has been
// seen for WatchdogTimeout.
func (c *Controller) checkWatchdog(ctx context.Context) {
	if c.registered(ctx) {
		c.lastServiceSeen = c.now()
		return
	}
	if c.now().Sub(c.lastServiceSeen) >= c.cfg.WatchdogTimeout {
		c.log.Warn("schedule: no service for watchdog timeout, unlocking bands")
		c.send(ctx, "^LTEFREQLOCK=0")
		c.send(ctx, "^NRFREQLOCK=0")
		c.lastApplied = ModeUnlocked
		c.lastServiceSeen = c.now()
	}
}

func (c *Controller) registered(ctx context.Context) bool {
	for _, cmd := range []string{"+CREG?", "+CEREG?"} {
		rsp := c.send(ctx, cmd)
		if rsp.Err != nil {
			continue
		}
		for _, line := range rsp.Body {
			if strings.Contains(line, ",1") || strings.Contains(line, ",5") {
				return true
			}
		}
	}
	return false
}

func (c *Controller) send(ctx context.Context, cmd string) Response {
	if c.sender == nil {
		return Response{Err: fmt.Errorf("schedule: no sender configured")}
	}
	return c.sender.Send(ctx, cmd)
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
