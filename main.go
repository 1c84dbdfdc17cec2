// Package main provides the entry point for the marker tracker.
package main

import (
	"fmt"
	"os"

	"gaze-markers/internal/version"

	"github.com/urfave/cli/v2"
)

const appName = "gaze-markers"

const (
	flagConfig    = "config"
	flagDevice    = "device"
	flagStills    = "stills"
	flagLoop      = "loop"
	flagMaxFrames = "max-frames"
	flagFPS       = "fps"
	flagStore     = "store"
	flagSnapshots = "snapshots"
	flagEvery     = "every"
	flagScreen    = "screen"
	flagLogLevel  = "log-level"
	flagLogFile   = "log-file"
	flagWatch     = "watch"
	flagSession   = "session"
	flagMarker    = "marker"
	flagForce     = "force"
)

func main() {
	app := &cli.App{
		Name:    appName,
		Usage:   "detect fiducial markers in video and rectify the surface they frame",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "track markers on a camera, video file or directory of stills",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagDevice, Aliases: []string{"d"}, Usage: "camera index or video `PATH`"},
					&cli.StringFlag{Name: flagStills, Usage: "replay the images in `DIR`"},
					&cli.BoolFlag{Name: flagLoop, Usage: "loop the stills"},
					&cli.Int64Flag{Name: flagMaxFrames, Usage: "stop after `N` frames"},
					&cli.Float64Flag{Name: flagFPS, Usage: "limit the frame rate"},
					&cli.StringFlag{Name: flagStore, Usage: "record detections in the SQLite database at `PATH`"},
					&cli.StringFlag{Name: flagSnapshots, Usage: "save composite snapshots to `DIR`"},
					&cli.Int64Flag{Name: flagEvery, Usage: "snapshot every `N` frames", Value: 0},
					&cli.BoolFlag{Name: flagScreen, Usage: "also run the screen detector"},
					&cli.StringFlag{Name: flagLogLevel, Usage: "debug, info, warn or error"},
					&cli.StringFlag{Name: flagLogFile, Usage: "also write JSON logs to `PATH`"},
					&cli.BoolFlag{Name: flagWatch, Usage: "reload detector settings when the config file changes"},
				},
				Action: runAction,
			},
			{
				Name:  "sessions",
				Usage: "list recorded sessions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagStore, Required: true, Usage: "SQLite database `PATH`"},
				},
				Action: sessionsAction,
			},
			{
				Name:  "history",
				Usage: "show where a marker was seen during a session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagStore, Required: true, Usage: "SQLite database `PATH`"},
					&cli.StringFlag{Name: flagSession, Required: true, Usage: "session `ID`"},
					&cli.IntFlag{Name: flagMarker, Required: true, Usage: "marker `ID`"},
				},
				Action: historyAction,
			},
			{
				Name:  "config",
				Usage: "manage the configuration file",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "print the effective configuration",
						Action: configShowAction,
					},
					{
						Name:  "init",
						Usage: "write the default configuration",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: flagForce, Usage: "overwrite an existing file"},
						},
						Action: configInitAction,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}
