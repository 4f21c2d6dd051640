// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/planthealth/internal/config"
)

const maskedSecret = "********"

func (app *App) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(app.newConfigInitCommand(), app.newConfigShowCommand())
	return cmd
}

func (app *App) newConfigInitCommand() *cobra.Command {
	var (
		force bool
		env   string
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path, err := initPath(args, app.ConfigPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return &CommandError{Command: "config", Action: "init", Reason: path + " already exists (use --force to overwrite)", Code: ExitUsageError}
			}

			cfg := config.Default()
			if env != "" {
				cfg.Environment = strings.ToLower(env)
				cfg.Server.AllowedOrigins = nil
				cfg.SetDefaults()
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return NewCommandError("config", "init", "could not create config directory", err)
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return NewCommandError("config", "init", "could not write "+path, err)
			}

			return app.print("config", map[string]string{"path": path, "environment": cfg.Environment}, func(w io.Writer) {
				fmt.Fprintf(w, "%s wrote %s\n", RenderConditional(SuccessStyle, "[OK]"), path)
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.Flags().StringVar(&env, "env", "", "profile: development, production or testing")
	return cmd
}

func (app *App) newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Inference.Remote.APIKey != "" {
				shown.Inference.Remote.APIKey = maskedSecret
			}
			if shown.Session.RedisPassword != "" {
				shown.Session.RedisPassword = maskedSecret
			}

			if app.JSON {
				return NewJSONResponse("config", shown).Write(app.Out)
			}
			if err := toml.NewEncoder(app.Out).Encode(shown); err != nil {
				return NewCommandError("config", "show", "could not encode configuration", err)
			}
			return nil
		},
	}
}

// initPath picks the target of config init: the argument, then --config,
// then the default location.
func initPath(args []string, flagPath string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case flagPath != "":
		return flagPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", NewCommandError("config", "init", "could not resolve default config path", err)
	}
	return path, nil
}
