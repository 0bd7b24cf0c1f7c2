package main

import (
	"github.com/maneesh/licitafiles/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCommand returns the root command with all subcommands attached
func NewRootCommand() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "licitafiles",
		Short: "File storage service for tender documents.",
		Long: `licitafiles lists, uploads and deletes tender documents in a blob store
(MinIO or S3). Without BLOB_STORAGE_URL it keeps file metadata in memory.`,
		SilenceUsage: true,
		Version:      version,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file before reading configuration")

	loadConfig := func() (*config.Config, error) {
		return config.LoadConfig(envFile)
	}

	rootCmd.AddCommand(NewServeCommand(loadConfig))
	rootCmd.AddCommand(NewBackendCommand(loadConfig))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "env",
		Short: "Describe the supported environment variables",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(config.Usage())
		},
	})

	return rootCmd
}
