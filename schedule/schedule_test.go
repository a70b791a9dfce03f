package schedule

import (
	"context"
	"strings"
	"testing"
	"time"
)

type recordingSender struct {
	cmds []string
	resp Response
}

func (s *recordingSender) Send(_ context.Context, cmd string) Response {
	s.cmds = append(s.cmds, cmd)
	return s.resp
}

func at(hour, min int) time.Time {
	return time.Date(2026, 1, 1, hour, min, 0, 0, time.UTC)
}

func TestTargetMode_SimpleWindow(t *testing.T) {
	sender := &recordingSender{resp: Response{OK: true}}
	c := NewController(Config{Enabled: true, NightStartMinutes: 22 * 60, NightEndMinutes: 6 * 60}, sender, nil)

	c.now = func() time.Time { return at(23, 0) }
	if got := c.targetMode(); got != ModeNight {
		t.Errorf("23:00 -> %v, want night", got)
	}

	c.now = func() time.Time { return at(2, 0) }
	if got := c.targetMode(); got != ModeNight {
		t.Errorf("02:00 -> %v, want night (wrap across midnight)", got)
	}

	c.now = func() time.Time { return at(12, 0) }
	if got := c.targetMode(); got != ModeDay {
		t.Errorf("12:00 -> %v, want day", got)
	}
}

func TestTargetMode_DisabledIsUnlocked(t *testing.T) {
	c := NewController(Config{Enabled: false}, &recordingSender{}, nil)
	c.now = func() time.Time { return at(23, 0) }
	if got := c.targetMode(); got != ModeUnlocked {
		t.Errorf("disabled -> %v, want unlocked", got)
	}
}

func TestApplySequence_AirplaneModeTogglesAroundLockCommands(t *testing.T) {
	sender := &recordingSender{resp: Response{OK: true}}
	c := NewController(Config{
		Enabled: true, ToggleAirplane: true,
		DayLTE: BandLock{Type: 1, Bands: []int{3}, ARFCNs: []int{1575}},
	}, sender, nil)
	c.now = time.Now

	c.applySequence(context.Background(), ModeDay)

	if len(sender.cmds) < 3 {
		t.Fatalf("cmds = %v, want at least 3", sender.cmds)
	}
	if sender.cmds[0] != "+CFUN=0" {
		t.Errorf("cmds[0] = %q, want +CFUN=0", sender.cmds[0])
	}
	if sender.cmds[len(sender.cmds)-1] != "+CFUN=1" {
		t.Errorf("last cmd = %q, want +CFUN=1", sender.cmds[len(sender.cmds)-1])
	}
	found := false
	for _, cmd := range sender.cmds {
		if strings.HasPrefix(cmd, "^LTEFREQLOCK=1,0,1") {
			found = true
		}
	}
	if !found {
		t.Errorf("cmds = %v, want an EARFCN lock command", sender.cmds)
	}
}

func TestApplyLTE_MismatchedListsFallsBackToUnlock(t *testing.T) {
	sender := &recordingSender{resp: Response{OK: true}}
	c := NewController(Config{
		Enabled: true, DayLTE: BandLock{Type: 1, Bands: []int{3, 7}, ARFCNs: []int{1575}},
	}, sender, nil)

	c.applyLTE(context.Background(), ModeDay)

	if len(sender.cmds) != 1 || sender.cmds[0] != "^LTEFREQLOCK=0" {
		t.Errorf("cmds = %v, want a single unlock command", sender.cmds)
	}
}

func TestApplyNR_AutoDerivesSCSFromBandTable(t *testing.T) {
	sender := &recordingSender{resp: Response{OK: true}}
	c := NewController(Config{
		Enabled: true, DayNR: BandLock{Type: 1, Bands: []int{78, 28}, ARFCNs: []int{620000, 155000}},
	}, sender, nil)

	c.applyNR(context.Background(), ModeDay)

	if len(sender.cmds) != 1 {
		t.Fatalf("cmds = %v, want 1", sender.cmds)
	}
	if !strings.Contains(sender.cmds[0], `"1,0"`) {
		t.Errorf("cmd = %q, want SCS list \"1,0\" derived from band table", sender.cmds[0])
	}
}

func TestCheckWatchdog_UnlocksAfterTimeout(t *testing.T) {
	sender := &recordingSender{resp: Response{OK: true, Body: []string{"+CREG: 0,2"}}}
	c := NewController(Config{WatchdogTimeout: time.Minute}, sender, nil)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.lastServiceSeen = now

	c.checkWatchdog(context.Background())
	if len(sender.cmds) != 2 {
		t.Fatalf("expected only the registration poll before timeout, got %v", sender.cmds)
	}

	now = now.Add(2 * time.Minute)
	c.checkWatchdog(context.Background())

	found := false
	for _, cmd := range sender.cmds {
		if cmd == "^LTEFREQLOCK=0" {
			found = true
		}
	}
	if !found {
		t.Errorf("cmds = %v, want an unlock after watchdog timeout", sender.cmds)
	}
}

func TestCheckWatchdog_RegisteredResetsTimer(t *testing.T) {
	sender := &recordingSender{resp: Response{OK: true, Body: []string{"+CREG: 0,1"}}}
	c := NewController(Config{WatchdogTimeout: time.Minute}, sender, nil)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.lastServiceSeen = now.Add(-2 * time.Minute)

	c.checkWatchdog(context.Background())

	if c.lastServiceSeen != now {
		t.Error("lastServiceSeen not reset on registered state")
	}
}
