// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/planthealth/internal/diagnosis"
)

// DiagnoseOutput is the JSON data of the diagnose command.
type DiagnoseOutput struct {
	Image  string           `json:"image"`
	Crop   string           `json:"crop"`
	Result diagnosis.Result `json:"result"`
}

func (app *App) newDiagnoseCommand() *cobra.Command {
	var (
		crop     string
		diseases []string
	)

	cmd := &cobra.Command{
		Use:   "diagnose <image>",
		Short: "Diagnose a leaf image from disk",
		Example: `  planthealth diagnose leaf.jpg --crop tomato
  planthealth diagnose leaf.png --crop rice --diseases "Blast,Brown Spot,Healthy" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			crop = strings.ToLower(strings.TrimSpace(crop))
			if crop == "" {
				return &ValidationError{Field: "crop", Reason: "crop type is required", Example: "--crop tomato"}
			}

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				code := ExitGeneralError
				if errors.Is(err, fs.ErrNotExist) {
					code = ExitNotFoundError
				}
				return &CommandError{Command: "diagnose", Action: "read image", Reason: path, Err: err, Code: code}
			}

			cfg, err := app.Config()
			if err != nil {
				return err
			}
			kb, err := openKnowledge(cfg)
			if err != nil {
				return err
			}
			engine, err := buildEngine(cfg, kb)
			if err != nil {
				return err
			}

			var valid []string
			if cmd.Flags().Changed("diseases") {
				valid = trimAll(diseases)
			}
			result := engine.Predict(cmd.Context(), data, crop, valid)
			if result.IsError() {
				return &CommandError{Command: "diagnose", Action: "analyze", Reason: result.IrrelevantReason, Code: ExitAnalysisError}
			}

			out := DiagnoseOutput{Image: path, Crop: crop, Result: result}
			return app.print("diagnose", out, func(w io.Writer) {
				fmt.Fprint(w, RenderResult(crop, result, GetTerminalWidth()))
			})
		},
	}

	cmd.Flags().StringVar(&crop, "crop", "", "crop type, e.g. tomato or rice (required)")
	cmd.Flags().StringSliceVar(&diseases, "diseases", nil, "candidate labels; defaults to the crop's profile")
	return cmd
}

// trimAll trims each entry and drops empty ones.
func trimAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
