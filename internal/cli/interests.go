package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var interestsClientID int

var interestsCmd = &cobra.Command{
	Use:   "interests",
	Short: "Analyze a client's conversations and show top interests",
	Long: `Run interest extraction over the client's conversations not yet analyzed,
store the resulting signals and print the client's ranked interest list.

Examples:
  ventas interests --client 7`,
	RunE: runInterests,
}

func init() {
	interestsCmd.Flags().IntVar(&interestsClientID, "client", 0, "client id (required)")
	interestsCmd.MarkFlagRequired("client")
	rootCmd.AddCommand(interestsCmd)
}

func runInterests(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.analyzer.AnalyzeClient(cmd.Context(), interestsClientID)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Printf("Analysis complete:\n")
	fmt.Printf("  Conversations: %d\n", result.Conversations)
	fmt.Printf("  Extracted:     %d\n", result.Extracted)
	fmt.Printf("  Stored:        %d\n", result.Stored)
	fmt.Printf("  Skipped:       %d (duplicates)\n", result.Skipped)
	fmt.Printf("  Failed:        %d\n", result.Failed)
	for _, e := range result.Errors {
		fmt.Printf("  - %s\n", e)
	}

	icfg := a.cfg.Interest
	since := time.Now().AddDate(0, 0, -icfg.DaysBack)
	top, err := a.analyzer.TopInterests(interestsClientID, icfg.MinConfidence, since, icfg.TopN)
	if err != nil {
		return err
	}

	if len(top) == 0 {
		fmt.Println("\nNo qualifying interests.")
		return nil
	}
	fmt.Printf("\nTop interests:\n")
	for _, sig := range top {
		fmt.Printf("  [%.2f] %s %q (id=%d)", sig.Confidence, sig.Type, sig.EntityName, sig.EntityID)
		if sig.Context != "" {
			fmt.Printf(" (%s)", sig.Context)
		}
		fmt.Println()
	}
	return nil
}
