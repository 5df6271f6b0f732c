package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Vovarama1992/whatsapp-family-router/internal/whatsapp"
)

func newEventsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the most recent routing events from the audit database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn := v.GetString("database_url")
			if dsn == "" {
				return errors.New("DATABASE_URL is not set")
			}
			limit, _ := cmd.Flags().GetInt("limit")

			db, err := openDB(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := whatsapp.NewPostgresSink(db).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSENDER\tAGENT\tOUTCOME\tDETAIL")
			for _, ev := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					ev.CreatedAt.Local().Format(time.DateTime),
					ev.Sender,
					ev.AgentID,
					ev.Outcome,
					ev.Detail,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Number of events to show.")
	return cmd
}
