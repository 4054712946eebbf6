package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"aoi-go/internal/aoi"
)

func printAlerts(alerts []aoi.ResolvedAlert) {
	if len(alerts) == 0 {
		fmt.Println("No alerts.")
		return
	}
	for _, al := range alerts {
		partial := ""
		if al.Partial {
			partial = "  [partial]"
		}
		fmt.Printf("%-24s  %s  %12.1f m²%s\n", al.ID, al.DetectionDate.Format(timeLayout), al.AreaOfChange, partial)
		fmt.Printf("    before: %s\n", orDash(al.URL(aoi.ThumbnailBefore)))
		fmt.Printf("    after:  %s\n", orDash(al.URL(aoi.ThumbnailAfter)))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// alerts command
var alertsCmd = &cobra.Command{
	Use:   "alerts AOI_ID",
	Short: "Fetch the change alerts of an AOI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetDuration("watch")
		archive, _ := cmd.Flags().GetBool("archive")
		if watch > 0 && archive {
			return fmt.Errorf("--watch and --archive cannot be combined")
		}

		operation := "GetAlerts"
		if archive {
			operation = "ArchiveAlerts"
		}
		a, err := newApp(cmd.Context(), operation)
		if err != nil {
			return err
		}
		defer a.Close()

		aoiID := args[0]
		switch {
		case archive:
			report, err := a.ArchiveAlerts(cmd.Context(), aoiID)
			if err != nil {
				return fmt.Errorf("archiving alerts: %w", err)
			}
			fmt.Printf("%d alert(s): archived %d thumbnail(s), %d byte(s); skipped %d\n",
				report.Alerts, report.Archived, report.Bytes, report.Skipped)
			return nil
		case watch > 0:
			return a.WatchAlerts(cmd.Context(), aoiID, watch, func(alerts []aoi.ResolvedAlert) {
				fmt.Printf("-- %s --\n", time.Now().Format(timeLayout))
				printAlerts(alerts)
			})
		default:
			printAlerts(a.GetAlerts(cmd.Context(), aoiID))
			return nil
		}
	},
}

func init() {
	alertsCmd.Flags().Duration("watch", 0, "Refetch at this interval until interrupted (e.g. 30s)")
	alertsCmd.Flags().Bool("archive", false, "Download and archive every thumbnail not archived yet")
}
