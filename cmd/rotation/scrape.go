package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [player-id...]",
	Short: "Download missing player histories from Fangraphs",
	Long: "Download the season history of every player named, or of every player in\n" +
		"the franchise files when none are named. Saved histories are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flags.offline {
			return fmt.Errorf("scrape cannot run with --offline")
		}
		a, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ids := args
		if len(ids) == 0 {
			names, err := a.Store.Franchises()
			if err != nil {
				return err
			}
			players, err := a.Store.PlayerList(cmd.Context(), names)
			if err != nil {
				return err
			}
			for _, p := range players {
				ids = append(ids, p.ID)
			}
		}

		result, err := a.Source.Scrape(cmd.Context(), ids)
		if result != nil {
			log.WithFields(logrus.Fields{
				"fetched": result.Fetched,
				"skipped": result.Skipped,
				"failed":  len(result.Failed),
			}).Info("Scrape finished")
		}
		if err != nil {
			return err
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d players could not be scraped: %v", len(result.Failed), result.Failed)
		}
		return nil
	},
}

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "Write the de-duplicated player list from the franchise files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.Store.Franchises()
		if err != nil {
			return err
		}
		players, err := a.Store.PlayerList(cmd.Context(), names)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d players from %d franchises\n", len(players), len(names))
		return nil
	},
}
