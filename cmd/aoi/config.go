package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"aoi-go/internal/app"
	"aoi-go/internal/archive"
	"aoi-go/internal/config"
	"aoi-go/internal/encryption"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		backendURL, _ := cmd.Flags().GetString("backend-url")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		clientID := uuid.New().String()
		cfg := config.NewConfig(clientID, defaults.BaseDir)
		if backendURL != "" {
			cfg.Backend.URL = backendURL
		}
		if encrypt {
			cfg.Encryption.Type = "age"
		}

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		if encrypt {
			pass, err := readNewPassphrase()
			if err != nil {
				return err
			}
			enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
			if err != nil {
				return fmt.Errorf("creating encryptor: %w", err)
			}
			if err := enc.Setup(pass); err != nil {
				return fmt.Errorf("setting up encryption keys: %w", err)
			}
			fmt.Printf("Encryption keys written to %s\n", cfg.Encryption.PublicKeyPath)
		}

		arch, err := archive.NewArchiveFromConfig(cmd.Context(), cfg.Archive)
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		if arch != nil {
			if err := arch.ValidateSetup(cmd.Context()); err != nil {
				fmt.Printf("Warning: archive not usable yet: %v\n", err)
			}
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Client ID: %s\n", clientID)
		fmt.Printf("Base Dir:  %s\n", defaults.BaseDir)
		fmt.Printf("Backend:   %s\n", cfg.Backend.URL)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		token := "(none)"
		if cfg.Backend.Token != "" {
			token = "(set)"
		}
		archiveType := cfg.Archive.Type
		if archiveType == "" {
			archiveType = "(disabled)"
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Client ID:    %s\n", cfg.ClientID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Backend:      %s %s (token %s)\n", cfg.Backend.Type, cfg.Backend.URL, token)
		fmt.Printf("Merge Policy: %s\n", cfg.Alerts.MergePolicy)
		fmt.Printf("Database:     %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Archive:      %s\n", archiveType)
		fmt.Printf("Encryption:   %s\n", cfg.Encryption.Type)
		if cfg.Metrics.PushgatewayURL != "" {
			fmt.Printf("Pushgateway:  %s\n", cfg.Metrics.PushgatewayURL)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Generate an age key pair to encrypt archived thumbnails")
	configInitCmd.Flags().String("backend-url", "", "Change-detection service URL")
	configCmd.AddCommand(configListCmd)
}
