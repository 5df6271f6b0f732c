package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Vovarama1992/whatsapp-family-router/internal/config"
	"github.com/Vovarama1992/whatsapp-family-router/internal/whatsapp"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "whatsapp-router",
		Short:         "Route WhatsApp messages from known senders to their OpenAI assistants",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			config.SetDefaults(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	cmd.PersistentFlags().String("env-file", ".env", "Path of a .env file to load (optional).")
	cmd.PersistentFlags().String("agents-file", "", "YAML file with the sender directory (default agents.yaml).")
	cmd.PersistentFlags().String("log-level", "", "Logging level: debug|info|warn|error.")
	cmd.PersistentFlags().String("log-format", "", "Logging format: text|json.")
	cmd.PersistentFlags().String("port", "", "Listen port (default 3000).")
	_ = v.BindPFlag("agents_file", cmd.PersistentFlags().Lookup("agents-file"))
	_ = v.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log_format", cmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("port", cmd.PersistentFlags().Lookup("port"))

	cmd.AddCommand(newServeCmd(v))
	cmd.AddCommand(newAgentsCmd(v))
	cmd.AddCommand(newEventsCmd(v))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the router version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), whatsapp.Version)
		},
	})

	return cmd
}
