// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionInfo is the JSON data of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

func (app *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			info := VersionInfo{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
			}
			return app.print("version", info, func(w io.Writer) {
				fmt.Fprintf(w, "planthealth version %s\n", info.Version)
				fmt.Fprintf(w, "  Git commit: %s\n", info.GitCommit)
				fmt.Fprintf(w, "  Built:      %s\n", info.BuildDate)
				fmt.Fprintf(w, "  Go:         %s\n", info.GoVersion)
			})
		},
	}
}
