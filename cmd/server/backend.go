package main

import (
	"github.com/maneesh/licitafiles/internal/config"
	"github.com/maneesh/licitafiles/internal/logging"
	"github.com/maneesh/licitafiles/internal/storage"
	"github.com/spf13/cobra"
)

// NewBackendCommand reports which backend serve would use and why
func NewBackendCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Show whether the blob storage backend is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat)

			selector := storage.NewSelector(cfg.BlobStorageURL, storage.WithLogger(logger))
			if reason := selector.Reason(); reason != nil {
				cmd.Printf("backend: memory (degraded)\nreason: %v\n", reason)
				return nil
			}

			loc, err := storage.ParseConnectionString(cfg.BlobStorageURL)
			if err != nil {
				return err
			}
			cmd.Printf("backend: %s\n", loc.Scheme)
			return nil
		},
	}
}
