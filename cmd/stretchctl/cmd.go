package main

import (
	"context"
	"io"
	"time"

	"github.com/urfave/cli"

	"stretchbot/internal/rpc"
)

const callTimeout = 10 * time.Second

var (
	alarmTitle   string
	alarmAt      string
	alarmDays    string
	alarmMinutes int
	alarmWait    int

	alarmFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "title, t",
			Usage:       "alarm title (at most 20 characters)",
			Destination: &alarmTitle,
		},
		cli.IntFlag{
			Name:        "wait, w",
			Usage:       "seconds the stretch prompt waits (default: the reminder setting)",
			Value:       -1,
			Destination: &alarmWait,
		},
	}
)

// Execute runs the command line against a daemon and writes results to out.
func Execute(args []string, out io.Writer) error {
	app := cli.NewApp()
	app.Name = "stretchctl"
	app.HelpName = "stretchctl"
	app.Usage = "control a running stretchbot daemon"
	app.UsageText = "stretchctl [--addr URL] <command> [arguments...]"
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "addr, a",
			Usage:  "daemon base URL",
			Value:  "http://127.0.0.1:7531",
			EnvVar: "STRETCHBOT_ADDR",
		},
		cli.StringFlag{
			Name:   "token",
			Usage:  "bearer token for the rpc endpoint",
			EnvVar: "STRETCHBOT_TOKEN",
		},
	}
	app.Commands = []cli.Command{
		{Name: "state", Aliases: []string{"s"}, Usage: "show the reminder countdown", Action: state},
		{Name: "toggle", Usage: "pause or resume the reminder", Action: toggle},
		{Name: "complete", Usage: "finish a stretch and restart the countdown", Action: complete},
		{
			Name:   "settings",
			Usage:  "show or change reminder settings",
			Action: settings,
			Flags: []cli.Flag{
				cli.IntFlag{Name: "interval", Usage: "reminder interval in minutes"},
				cli.IntFlag{Name: "wait", Usage: "stretch prompt wait in seconds"},
				cli.StringFlag{Name: "sound", Usage: "on or off"},
				cli.StringFlag{Name: "autostart", Usage: "on or off"},
				cli.IntFlag{Name: "ui-size", Usage: "window size preset (1-3)"},
			},
		},
		{Name: "alarms", Aliases: []string{"ls"}, Usage: "list alarms", Action: listAlarms},
		{
			Name:      "add-time",
			Usage:     "add a time-of-day alarm",
			UsageText: "stretchctl add-time --title NAME --at HH:MM [--days mon,wed]",
			Action:    addTime,
			Flags: append([]cli.Flag{
				cli.StringFlag{Name: "at", Usage: "time of day, HH:MM", Destination: &alarmAt},
				cli.StringFlag{Name: "days, d", Usage: "comma separated weekdays; empty fires once", Destination: &alarmDays},
			}, alarmFlags...),
		},
		{
			Name:      "add-interval",
			Usage:     "add an interval alarm",
			UsageText: "stretchctl add-interval --title NAME --minutes N",
			Action:    addInterval,
			Flags: append([]cli.Flag{
				cli.IntFlag{Name: "minutes, m", Usage: "interval in minutes (1-1440)", Destination: &alarmMinutes},
			}, alarmFlags...),
		},
		{Name: "toggle-alarm", Usage: "enable or disable an alarm", ArgsUsage: "ID", Action: toggleAlarm},
		{Name: "delete-alarm", Aliases: []string{"rm"}, Usage: "delete an alarm", ArgsUsage: "ID", Action: deleteAlarm},
	}
	return app.Run(args)
}

// call dials the daemon named by the global flags and invokes method once.
func call(c *cli.Context, method string, params, result any) error {
	client := rpc.Dial(c.GlobalString("addr"), c.GlobalString("token"))
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return client.Call(ctx, method, params, result)
}
