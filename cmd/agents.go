package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Vovarama1992/whatsapp-family-router/internal/config"
)

func newAgentsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the sender directory and each agent's assistant binding",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			dir, err := cfg.Directory()
			if err != nil {
				return err
			}
			reg := cfg.Registry()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AGENT\tNAME\tPHONE\tASSISTANT")
			for _, e := range dir.Entries() {
				assistantID, ok := reg.Resolve(e.Profile.AgentID)
				if !ok {
					assistantID = "(missing)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Profile.AgentID, e.Profile.DisplayName, e.Phone, assistantID)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bot number: %s\n", cfg.BotNumber)

			if missing := reg.Missing(dir); len(missing) > 0 {
				return fmt.Errorf("%d agent(s) without assistant binding: %v", len(missing), missing)
			}
			return nil
		},
	}
}
