package dispatch

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"relaybot/internal/domain"
	"relaybot/internal/timer"
)

var (
	reClock   = regexp.MustCompile(`^(\d\d?)[:.](\d\d)$`)
	reHMS     = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)(?:m|min))?(?:(\d+)s)?$`)
	reMinutes = regexp.MustCompile(`^(\d+)$`)
)

var (
	errBadClock      = errors.New("invalid clock time")
	errUnknownFormat = errors.New("unknown time format")
)

// parseTimerSpec turns a time expression into a delay from now. Accepted
// forms: "HH:MM" (next occurrence of that wall-clock time), "XhYmZs"
// combinations, or bare minutes.
func parseTimerSpec(spec string, now time.Time) (time.Duration, error) {
	if m := reClock.FindStringSubmatch(spec); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return 0, errBadClock
		}
		target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !target.After(now) {
			target = target.Add(24 * time.Hour)
		}
		return target.Sub(now), nil
	}

	if m := reHMS.FindStringSubmatch(spec); m != nil {
		var dur time.Duration
		if m[1] != "" {
			h, _ := strconv.Atoi(m[1])
			dur += time.Duration(h) * time.Hour
		}
		if m[2] != "" {
			min, _ := strconv.Atoi(m[2])
			dur += time.Duration(min) * time.Minute
		}
		if m[3] != "" {
			s, _ := strconv.Atoi(m[3])
			dur += time.Duration(s) * time.Second
		}
		return dur, nil
	}

	if m := reMinutes.FindStringSubmatch(spec); m != nil {
		min, _ := strconv.Atoi(m[1])
		return time.Duration(min) * time.Minute, nil
	}

	return 0, errUnknownFormat
}

// formatCompact renders a duration as the same kind of compact h/m/s string
// the timer command accepts.
func formatCompact(d time.Duration) string {
	total := int64(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	out := ""
	if h > 0 {
		out += fmt.Sprintf("%dh", h)
	}
	if m > 0 {
		out += fmt.Sprintf("%dm", m)
	}
	if s > 0 {
		out += fmt.Sprintf("%ds", s)
	}
	if out == "" {
		out = "0s"
	}
	return out
}

func (d *Dispatcher) cmdTimer(source domain.ChannelRef, params string, sender *domain.UserID) {
	spec, message := splitCommand(params)

	dur, err := parseTimerSpec(spec, time.Now())
	switch {
	case errors.Is(err, errBadClock):
		d.say(source, "Unable to parse time from "+spec)
		return
	case err != nil:
		return
	case dur < 0:
		d.say(source, "Time parser failed: negative duration.")
		return
	}

	reminder := "Timer: " + message
	if sender != nil {
		reminder = sender.Nick + ": " + message
	}

	d.say(source, fmt.Sprintf("Timer set, shouting in %s.", formatCompact(dur)))
	d.timers.Schedule(timer.Event{
		Target:  source,
		Message: reminder,
		In:      dur,
	})
}

func (d *Dispatcher) cmdPizza(source domain.ChannelRef, sender *domain.UserID, what string, dur time.Duration) {
	reminder := fmt.Sprintf("Help! The %s is burning!", what)
	if sender != nil {
		reminder = fmt.Sprintf("Help %s! The %s is burning!", sender.Nick, what)
	}

	d.say(source, fmt.Sprintf("Shouting about the pizza in %d minutes.", int(dur.Minutes())))
	d.timers.Schedule(timer.Event{
		Target:  source,
		Message: reminder,
		In:      dur,
	})
}
