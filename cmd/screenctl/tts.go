package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"screening-agent/internal/tts"
)

var ttsCmd = &cobra.Command{
	Use:   "tts",
	Short: "Speech cache maintenance",
}

var ttsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict cached audio past the configured age and file cap",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := load()
		if err != nil {
			return err
		}
		store, err := tts.OpenStore(cmd.Context(), cfg.Speech)
		if err != nil {
			return err
		}
		cache := tts.NewCache(nil, store, tts.CacheOptions{
			MaxFiles: cfg.Speech.CacheMaxFiles,
			MaxAge:   cfg.Speech.CacheMaxAge,
		}, log)
		n, err := cache.Prune(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ttsCmd)
	ttsCmd.AddCommand(ttsPruneCmd)
}
