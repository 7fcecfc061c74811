package seat

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"github.com/1broseidon/multiboxer/internal/swap"
)

const shortUnitSpec = "y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us"

var shortUnits durafmt.Units

func init() {
	units, err := durafmt.DefaultUnitsCoder.Decode(shortUnitSpec)
	if err != nil {
		panic("seat: bad duration units: " + err.Error())
	}
	shortUnits = units
}

// SlotStatus describes one slot for status output.
type SlotStatus struct {
	ID         int    `json:"id"`
	Profile    string `json:"profile"`
	State      string `json:"state"`
	PID        int    `json:"pid,omitempty"`
	Window     uint32 `json:"window,omitempty"`
	Foreground bool   `json:"foreground"`
	Previewed  bool   `json:"previewed"`
	Protected  bool   `json:"protected"`
	Uptime     string `json:"uptime,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// Status is a point-in-time view of the seat.
type Status struct {
	Template      string       `json:"template"`
	Capacity      int          `json:"capacity"`
	Bound         int          `json:"bound"`
	Active        int          `json:"active"`
	Foreground    int          `json:"foreground"`
	Deferred      bool         `json:"deferred"`
	SwapState     string       `json:"swap_state"`
	Pending       int          `json:"pending,omitempty"`
	Dropped       uint64       `json:"dropped"`
	Completed     uint64       `json:"completed"`
	Failed        uint64       `json:"failed"`
	Rejected      uint64       `json:"rejected"`
	RecoveryCause string       `json:"recovery_cause,omitempty"`
	LastPath      string       `json:"last_path,omitempty"`
	LastTouched   int          `json:"last_touched"`
	LastSwap      string       `json:"last_swap,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	Previews      int          `json:"previews"`
	Parked        int          `json:"parked"`
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Slots         []SlotStatus `json:"slots"`
}

// Status collects a snapshot from every component.
func (s *Seat) Status() Status {
	es := s.engine.Status()
	ms := s.machine.Stats()
	ps := s.previews.Stats()
	visible := make(map[int]bool)
	for _, id := range s.previews.Visible() {
		visible[id] = true
	}

	s.mu.Lock()
	last, lastAt, lastErr, started, tmpl := s.last, s.lastAt, s.lastErr, s.started, s.template
	s.mu.Unlock()

	now := time.Now()
	uptime := now.Sub(started)
	st := Status{
		Template:      tmpl,
		Capacity:      es.Capacity,
		Bound:         es.Bound,
		Active:        len(s.slots.ActiveSlots()),
		Foreground:    es.Foreground,
		SwapState:     string(ms.State),
		Pending:       ms.Pending,
		Dropped:       ms.Dropped,
		Completed:     ms.Completed,
		Failed:        ms.Failed,
		Rejected:      ms.Rejected,
		RecoveryCause: ms.RecoveryCause,
		LastError:     lastErr,
		LastTouched:   last.Touched,
		Previews:      ps.Visible,
		Parked:        es.Parked,
		Uptime:        FormatDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
	}
	st.Deferred = es.Capacity > 0 && st.Active < es.Capacity
	if !lastAt.IsZero() {
		st.LastPath = last.Path.String()
		st.LastSwap = humanize.RelTime(lastAt, now, "ago", "from now")
	}
	if ms.State == swap.StateIdle && !ms.LastCompleted.IsZero() {
		st.LastSwap = humanize.RelTime(ms.LastCompleted, now, "ago", "from now")
	}

	for _, info := range s.slots.Snapshot() {
		ss := SlotStatus{
			ID:         info.ID,
			Profile:    info.Profile,
			State:      info.State.String(),
			PID:        info.PID,
			Window:     uint32(info.Window),
			Foreground: info.ID == es.Foreground && info.State.HasWindow(),
			Previewed:  visible[info.ID],
			LastError:  info.LastError,
		}
		if info.Window != 0 {
			ss.Protected = s.engine.IsProtected(info.Window)
		}
		if info.State.HasWindow() && !info.StartedAt.IsZero() {
			ss.Uptime = FormatDuration(now.Sub(info.StartedAt))
		}
		st.Slots = append(st.Slots, ss)
	}
	return st
}

// FormatDuration renders d with its two largest units, e.g. "3h 12m".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(2).Format(shortUnits)
}
