// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/planthealth/internal/knowledge"
)

func (app *App) newCropsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "crops",
		Short: "List supported crops and their diseases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			kb, err := openKnowledge(cfg)
			if err != nil {
				return err
			}

			crops := listCrops(kb.Current())
			return app.print("crops", map[string]any{"crops": crops}, func(w io.Writer) {
				fmt.Fprintln(w, RenderConditional(TitleStyle, "Supported Crops"))
				for _, c := range crops {
					fmt.Fprintf(w, "%s %s\n",
						RenderConditional(SuccessStyle, c.Name),
						RenderConditional(DimStyle, "("+c.ScientificName+")"))
					fmt.Fprintf(w, "  %s\n", WrapText(strings.Join(c.Diseases, ", "), GetTerminalWidth()-2))
				}
			})
		},
	}
}

// listCrops returns every crop in id order.
func listCrops(kb *knowledge.Base) []knowledge.Crop {
	ids := kb.Crops()
	crops := make([]knowledge.Crop, 0, len(ids))
	for _, id := range ids {
		c, ok := kb.Crop(id)
		if !ok {
			continue
		}
		c.ID = id
		crops = append(crops, c)
	}
	return crops
}
