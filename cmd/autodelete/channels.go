package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/voidwell/autodelete/internal/config"
	"github.com/voidwell/autodelete/internal/models"
	"github.com/voidwell/autodelete/internal/store"
)

func newChannelsCmd() *cobra.Command {
	var (
		configPath string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List channel configurations",
		Long:  "Lists channels with autodelete enabled, their message lifetime, and pending deletion counts. With --all, disabled channels are included.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChannels(cmd, configPath, all)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "autodelete.yaml", "path to config file")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include disabled channels")
	return cmd
}

func runChannels(cmd *cobra.Command, configPath string, all bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := connectFromConfig(cfg)
	if err != nil {
		return err
	}

	channels := store.NewChannels(gormDB)
	messages := store.NewMessages(gormDB)

	var cfgs []models.ChannelConfig
	if all {
		cfgs, err = channels.List()
	} else {
		cfgs, err = channels.ListEnabled()
	}
	if err != nil {
		return err
	}
	if len(cfgs) == 0 {
		fmt.Fprintln(out, "No channels configured.")
		return nil
	}

	pending, err := messages.PendingByChannel()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tENABLED\tLIFETIME\tGENERATION\tPENDING\tUPDATED")
	for _, c := range cfgs {
		fmt.Fprintf(w, "%s\t%t\t%s\t%d\t%d\t%s\n",
			c.ChannelID, c.Enabled, time.Duration(c.DelaySeconds)*time.Second,
			c.Generation, pending[c.ChannelID], c.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
