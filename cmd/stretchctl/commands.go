package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"stretchbot/internal/domain"
	"stretchbot/internal/engine"
	"stretchbot/internal/rpc"
)

func printState(w io.Writer, st engine.ReminderState) {
	status := "stopped"
	switch {
	case st.IsPaused:
		status = "paused"
	case st.IsRunning:
		status = "running"
	}
	fmt.Fprintf(w, "reminder %s, %s left of %d min\n",
		status, time.Duration(st.RemainingSeconds)*time.Second, st.IntervalMinutes)
}

func reminderCall(method string) cli.ActionFunc {
	return func(c *cli.Context) error {
		var st engine.ReminderState
		if err := call(c, method, nil, &st); err != nil {
			return err
		}
		printState(c.App.Writer, st)
		return nil
	}
}

var (
	state    = reminderCall("reminder.state")
	toggle   = reminderCall("reminder.toggle")
	complete = reminderCall("reminder.complete")
)

func parseSwitch(name, v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("--%s: want on or off, got %q", name, v)
}

func settings(c *cli.Context) error {
	var s domain.Settings
	if err := call(c, "settings.get", nil, &s); err != nil {
		return err
	}
	changed := false
	if c.IsSet("interval") {
		s.IntervalMinutes, changed = c.Int("interval"), true
	}
	if c.IsSet("wait") {
		s.WaitSeconds, changed = c.Int("wait"), true
	}
	if c.IsSet("ui-size") {
		s.UISize, changed = c.Int("ui-size"), true
	}
	for _, f := range []struct {
		name string
		dst  *bool
	}{{"sound", &s.SoundEnabled}, {"autostart", &s.AutoStart}} {
		if !c.IsSet(f.name) {
			continue
		}
		v, err := parseSwitch(f.name, c.String(f.name))
		if err != nil {
			return err
		}
		*f.dst, changed = v, true
	}
	if changed {
		if err := call(c, "settings.save", s, &s); err != nil {
			return err
		}
	}
	w := c.App.Writer
	fmt.Fprintf(w, "interval:  %d min\n", s.IntervalMinutes)
	fmt.Fprintf(w, "wait:      %d s\n", s.WaitSeconds)
	fmt.Fprintf(w, "sound:     %s\n", onOff(s.SoundEnabled))
	fmt.Fprintf(w, "autostart: %s\n", onOff(s.AutoStart))
	fmt.Fprintf(w, "ui size:   %d\n", s.UISize)
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func listAlarms(c *cli.Context) error {
	var list []engine.AlarmEntry
	if err := call(c, "alarms.list", nil, &list); err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(c.App.Writer, "no alarms")
		return nil
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSCHEDULE\tSTATE\tNEXT")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Title, schedule(e.Alarm), onOff(e.Enabled), next(e))
	}
	return tw.Flush()
}

func schedule(a domain.Alarm) string {
	if a.Kind == domain.KindInterval {
		return fmt.Sprintf("every %d min", a.IntervalMinutes)
	}
	at := "--:--"
	if a.Time != nil {
		at = a.Time.String()
	}
	if len(a.RepeatDays) == 0 {
		return at + " once"
	}
	days := make([]string, 0, len(a.RepeatDays))
	for _, d := range a.RepeatDays {
		days = append(days, strings.ToLower(d.String()[:3]))
	}
	return at + " " + strings.Join(days, ",")
}

func next(e engine.AlarmEntry) string {
	switch {
	case e.RemainingSeconds != nil:
		return "in " + (time.Duration(*e.RemainingSeconds) * time.Second).String()
	case e.NextFireAt != nil:
		return e.NextFireAt.Format("Mon 15:04")
	default:
		return "-"
	}
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseDays(s string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" {
			continue
		}
		if len(p) > 3 {
			p = p[:3]
		}
		d, ok := weekdays[p]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		out = append(out, d)
	}
	return out, nil
}

func alarmParams(kind domain.AlarmKind) rpc.AlarmParams {
	p := rpc.AlarmParams{Title: alarmTitle, Kind: kind}
	if alarmWait >= 0 {
		w := alarmWait
		p.WaitSeconds = &w
	}
	return p
}

func saveAlarm(c *cli.Context, p rpc.AlarmParams) error {
	var a domain.Alarm
	if err := call(c, "alarms.save", p, &a); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "saved %s (%s)\n", a.ID, schedule(a))
	return nil
}

func addTime(c *cli.Context) error {
	at, err := domain.ParseClock(alarmAt)
	if err != nil {
		return fmt.Errorf("--at: %w", err)
	}
	days, err := parseDays(alarmDays)
	if err != nil {
		return fmt.Errorf("--days: %w", err)
	}
	p := alarmParams(domain.KindTimeOfDay)
	p.Time = &at
	p.RepeatDays = days
	return saveAlarm(c, p)
}

func addInterval(c *cli.Context) error {
	p := alarmParams(domain.KindInterval)
	p.IntervalMinutes = alarmMinutes
	return saveAlarm(c, p)
}

func idArg(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", errors.New("missing alarm id")
	}
	return id, nil
}

func toggleAlarm(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	var res rpc.AlarmResult
	if err := call(c, "alarms.toggle", rpc.IDParams{ID: id}, &res); err != nil {
		return err
	}
	if !res.Found || res.Alarm == nil {
		fmt.Fprintf(c.App.Writer, "no alarm %s\n", id)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "%s is now %s\n", id, onOff(res.Alarm.Enabled))
	return nil
}

func deleteAlarm(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	var res rpc.AlarmResult
	if err := call(c, "alarms.delete", rpc.IDParams{ID: id}, &res); err != nil {
		return err
	}
	if !res.Found {
		fmt.Fprintf(c.App.Writer, "no alarm %s\n", id)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
	return nil
}
