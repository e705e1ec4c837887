package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the product vector index from the catalog",
	Long: `Load the product catalog snapshots, embed each product's descriptive
text and rebuild the vector index, persisting it for later runs.

Examples:
  ventas refresh
  ventas refresh --config ./ventas.yaml`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("Embedding"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	result, err := a.refresh.Run(cmd.Context(), progress)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	fmt.Printf("\nRefresh complete:\n")
	fmt.Printf("  Products:  %d\n", result.Products)
	fmt.Printf("  Embedded:  %d\n", result.Embedded)
	fmt.Printf("  Failed:    %d\n", result.Failed)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nIndex stored at: %s\n", a.cfg.Index.Path)
	return nil
}
