package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List clients with qualifying interests",
	Long: `List every client holding at least one interest signal above the
configured confidence threshold within the look-back window. Clients without
qualifying interests are omitted: they receive no marketing follow-up.

Examples:
  ventas clients`,
	RunE: runClients,
}

func init() {
	rootCmd.AddCommand(clientsCmd)
}

func runClients(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	icfg := a.cfg.Interest
	since := time.Now().AddDate(0, 0, -icfg.DaysBack)
	profiles, err := a.analyzer.ClientsWithInterests(icfg.MinConfidence, since, icfg.TopN)
	if err != nil {
		return err
	}

	if len(profiles) == 0 {
		fmt.Println("No clients with qualifying interests.")
		return nil
	}

	for _, profile := range profiles {
		fmt.Printf("%s (%s):\n", profile.Client.Name, profile.Client.Phone)
		for _, sig := range profile.Interests {
			fmt.Printf("  [%.2f] %s %q (id=%d)\n", sig.Confidence, sig.Type, sig.EntityName, sig.EntityID)
		}
	}
	return nil
}
