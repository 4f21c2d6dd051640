// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/planthealth/internal/config"
	"github.com/jeranaias/planthealth/internal/logging"
)

// Version information, overridden at build time from main.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App holds the global flags and output streams of one invocation.
type App struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	JSON       bool

	Out io.Writer
	Err io.Writer

	cfg *config.Config
}

// NewApp creates an App writing to out and errOut.
func NewApp(out, errOut io.Writer) *App {
	return &App{Out: out, Err: errOut}
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(args []string) int {
	return NewApp(os.Stdout, os.Stderr).Run(args)
}

// Run executes args against a fresh command tree and reports the exit code.
func (app *App) Run(args []string) int {
	root := app.RootCommand()
	root.SetArgs(args)

	cmd, err := root.ExecuteC()
	if err == nil {
		return ExitSuccess
	}

	name := root.Name()
	if cmd != nil {
		name = cmd.Name()
	}
	DisplayError(app.Err, name, err, app.JSON)
	return GetExitCode(err)
}

// RootCommand builds the command tree.
func (app *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "planthealth",
		Short: "Plant leaf disease diagnosis and advisory service",
		Long: `planthealth diagnoses crop leaf images with two local classifiers,
returns curated symptoms, treatment and prevention advice, and answers
farming questions through a keyword-routed assistant.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ValidationError{Field: "flags", Reason: err.Error()}
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&app.ConfigPath, "config", "c", "", "config file (default ~/.planthealth/config.toml)")
	flags.StringVar(&app.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&app.LogFormat, "log-format", "", "log format: text, json or logfmt")
	flags.BoolVar(&app.JSON, "json", false, "print machine-readable JSON")

	root.AddCommand(
		app.newServeCommand(),
		app.newDiagnoseCommand(),
		app.newChatCommand(),
		app.newCropsCommand(),
		app.newConfigCommand(),
		app.newVersionCommand(),
	)
	return root
}

// Config loads the configuration once, applies the logging flags and
// configures the root logger.
func (app *App) Config() (*config.Config, error) {
	if app.cfg != nil {
		return app.cfg, nil
	}

	var (
		cfg *config.Config
		err error
	)
	if app.ConfigPath != "" {
		cfg, err = config.LoadFromPath(app.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		code := ExitConfigError
		if errors.Is(err, os.ErrNotExist) {
			code = ExitNotFoundError
		}
		return nil, &CommandError{Command: "config", Action: "load", Reason: "could not load configuration", Err: err, Code: code}
	}

	if app.LogLevel != "" {
		cfg.Logging.Level = app.LogLevel
	}
	if app.LogFormat != "" {
		cfg.Logging.Format = app.LogFormat
	}
	if err := logging.Configure(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}); err != nil {
		return nil, &CommandError{Command: "config", Action: "configure logging", Reason: "invalid logging settings", Err: err, Code: ExitConfigError}
	}

	app.cfg = cfg
	return cfg, nil
}

// print writes data as a JSON envelope in JSON mode, otherwise calls text.
func (app *App) print(command string, data any, text func(w io.Writer)) error {
	if app.JSON {
		return NewJSONResponse(command, data).Write(app.Out)
	}
	text(app.Out)
	return nil
}
