package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"aoi-go/internal/aoi"
	"aoi-go/internal/app"
)

const timeLayout = "2006-01-02 15:04:05"

func printAOIRow(a *aoi.AOI) {
	fmt.Printf("%-24s  %-24s  %-13s  %-8s  %8.2f km²\n",
		a.ID, a.Name, a.ChangeType, a.Status, a.Geometry.AreaSquareMeters()/1e6)
}

func printAOI(a *aoi.AOI) {
	lastMonitored := "never"
	if a.LastMonitored != nil {
		lastMonitored = a.LastMonitored.Format(timeLayout)
	}
	fmt.Printf("ID:             %s\n", a.ID)
	fmt.Printf("Name:           %s\n", a.Name)
	if a.Description != "" {
		fmt.Printf("Description:    %s\n", a.Description)
	}
	fmt.Printf("Status:         %s\n", a.Status)
	fmt.Printf("Change Type:    %s\n", a.ChangeType)
	fmt.Printf("Frequency:      %s\n", a.MonitoringFrequency)
	fmt.Printf("Threshold:      %d%%\n", a.ConfidenceThreshold)
	fmt.Printf("Email Alerts:   %t\n", a.EmailAlerts)
	fmt.Printf("In-App Alerts:  %t\n", a.InAppNotifications)
	fmt.Printf("Geometry:       %s, %.2f km²\n", a.Geometry.Kind(), a.Geometry.AreaSquareMeters()/1e6)
	fmt.Printf("Created:        %s\n", a.CreatedAt.Format(timeLayout))
	fmt.Printf("Last Monitored: %s\n", lastMonitored)
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List AOIs",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		status, _ := cmd.Flags().GetString("status")

		a, err := newApp(cmd.Context(), "ListAOIs")
		if err != nil {
			return err
		}
		defer a.Close()

		aois, err := a.ListAOIs(cmd.Context(), query, status)
		if err != nil {
			return err
		}

		if len(aois) == 0 {
			fmt.Println("No AOIs found.")
			return nil
		}
		for _, x := range aois {
			printAOIRow(x)
		}
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one AOI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "GetAOI")
		if err != nil {
			return err
		}
		defer a.Close()

		x, err := a.GetAOI(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printAOI(x)
		return nil
	},
}

// create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an AOI",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		name, _ := flags.GetString("name")
		geojsonPath, _ := flags.GetString("geojson")
		bbox, _ := flags.GetFloat64Slice("bbox")

		spec := app.AOISpec{BBox: bbox}
		if geojsonPath != "" {
			data, err := os.ReadFile(geojsonPath)
			if err != nil {
				return fmt.Errorf("reading geojson: %w", err)
			}
			spec.GeoJSON = string(data)
		}
		spec.ChangeType, _ = flags.GetString("change-type")
		spec.MonitoringFrequency, _ = flags.GetString("frequency")
		spec.Description, _ = flags.GetString("description")
		if flags.Changed("threshold") {
			v, _ := flags.GetInt("threshold")
			spec.ConfidenceThreshold = &v
		}
		if flags.Changed("email") {
			v, _ := flags.GetBool("email")
			spec.EmailAlerts = &v
		}
		if flags.Changed("in-app") {
			v, _ := flags.GetBool("in-app")
			spec.InAppNotifications = &v
		}

		a, err := newApp(cmd.Context(), "CreateAOI")
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.CreateAOI(cmd.Context(), name, spec)
		if err != nil {
			return fmt.Errorf("creating aoi: %w", err)
		}
		fmt.Printf("Created AOI %s\n", created.ID)
		return nil
	},
}

// update command
var updateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update an AOI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := patchFromFlags(cmd)

		a, err := newApp(cmd.Context(), "UpdateAOI")
		if err != nil {
			return err
		}
		defer a.Close()

		updated, err := a.UpdateAOI(cmd.Context(), args[0], p)
		if err != nil {
			return fmt.Errorf("updating aoi: %w", err)
		}
		printAOI(updated)
		return nil
	},
}

// patchFromFlags sets only the fields whose flags were given.
func patchFromFlags(cmd *cobra.Command) aoi.Patch {
	flags := cmd.Flags()
	var p aoi.Patch
	if flags.Changed("name") {
		v, _ := flags.GetString("name")
		p.Name = &v
	}
	if flags.Changed("change-type") {
		v, _ := flags.GetString("change-type")
		ct := aoi.ChangeType(v)
		p.ChangeType = &ct
	}
	if flags.Changed("frequency") {
		v, _ := flags.GetString("frequency")
		f := aoi.Frequency(v)
		p.MonitoringFrequency = &f
	}
	if flags.Changed("threshold") {
		v, _ := flags.GetInt("threshold")
		p.ConfidenceThreshold = &v
	}
	if flags.Changed("email") {
		v, _ := flags.GetBool("email")
		p.EmailAlerts = &v
	}
	if flags.Changed("in-app") {
		v, _ := flags.GetBool("in-app")
		p.InAppNotifications = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		p.Description = &v
	}
	if flags.Changed("status") {
		v, _ := flags.GetString("status")
		s := aoi.Status(v)
		p.Status = &s
	}
	return p
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an AOI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			ok, err := confirm(fmt.Sprintf("Delete AOI %s?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		a, err := newApp(cmd.Context(), "DeleteAOI")
		if err != nil {
			return err
		}
		defer a.Close()

		gone, err := a.DeleteAOI(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("deleting aoi: %w", err)
		}
		if gone {
			fmt.Printf("AOI %s was already deleted\n", args[0])
			return nil
		}
		fmt.Printf("Deleted AOI %s\n", args[0])
		return nil
	},
}

// dashboard command
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show summary statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Dashboard")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Dashboard(cmd.Context())
		if err != nil {
			return err
		}

		recent := "n/a"
		if d.Stats.RecentAlerts != nil {
			recent = fmt.Sprint(*d.Stats.RecentAlerts)
		}
		fmt.Printf("Total AOIs:        %d\n", d.Stats.TotalAOIs)
		fmt.Printf("Active Monitoring: %d\n", d.Stats.ActiveMonitoring)
		fmt.Printf("Recent Alerts:     %s\n", recent)
		fmt.Printf("Coverage:          %.2f km²\n", d.Stats.CoverageKm2)
		fmt.Printf("Generated:         %s\n", d.GeneratedAt.Format(time.RFC3339))

		if len(d.Recent) > 0 {
			fmt.Println("\nRecent AOIs:")
			for _, x := range d.Recent {
				printAOIRow(x)
			}
		}
		return nil
	},
}

func addAOIFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "AOI name")
	cmd.Flags().String("change-type", "", "Change type: deforestation, construction, waterbody, agricultural or other")
	cmd.Flags().String("frequency", "", "Monitoring frequency: daily, weekly, biweekly or monthly")
	cmd.Flags().Int("threshold", 60, "Confidence threshold in percent (30-90, step 10)")
	cmd.Flags().Bool("email", true, "Send email alerts")
	cmd.Flags().Bool("in-app", true, "Show in-app notifications")
	cmd.Flags().String("description", "", "Free-form description")
}

func init() {
	listCmd.Flags().StringP("query", "q", "", "Case-insensitive substring of name or change type")
	listCmd.Flags().StringP("status", "s", aoi.StatusAll, "Status filter: all, active, pending or inactive")

	addAOIFlags(createCmd)
	createCmd.Flags().String("geojson", "", "GeoJSON file with a Polygon or Point")
	createCmd.Flags().Float64Slice("bbox", nil, "Rectangle as minLon,minLat,maxLon,maxLat")
	_ = createCmd.MarkFlagRequired("name")
	createCmd.MarkFlagsMutuallyExclusive("geojson", "bbox")
	createCmd.MarkFlagsOneRequired("geojson", "bbox")

	addAOIFlags(updateCmd)
	updateCmd.Flags().String("status", "", "Status: active, pending or inactive")

	deleteCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}
