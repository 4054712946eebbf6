package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect archived thumbnails",
}

var archiveListCmd = &cobra.Command{
	Use:   "list AOI_ID",
	Short: "List archived thumbnails of an AOI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListArchivedThumbnails")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ListArchivedThumbnails(args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Nothing archived.")
			return nil
		}
		for _, e := range entries {
			enc := ""
			if e.Encrypted {
				enc = "  [encrypted]"
			}
			fmt.Printf("%-24s  %-6s  %s  %8d  %s%s\n",
				e.AlertID, e.Kind, e.Checksum[:12], e.Size, e.ArchivedAt.Format(timeLayout), enc)
		}
		return nil
	},
}

var archiveExportCmd = &cobra.Command{
	Use:   "export ALERT_ID KIND OUTPUT",
	Short: "Export an archived thumbnail (KIND is before or after)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ExportThumbnail")
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.ExportThumbnail(cmd.Context(), args[0], args[1], args[2], func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
		if err != nil {
			return fmt.Errorf("exporting thumbnail: %w", err)
		}
		fmt.Printf("Exported to %s\n", args[2])
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveExportCmd)
}
