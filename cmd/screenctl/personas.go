package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"screening-agent/internal/persona"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List agent profiles, including any CALL_SCRIPTS_FILE overlay",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := load()
		if err != nil {
			return err
		}
		cat := persona.Defaults(cfg.App.Company, cfg.App.AssistantName, cfg.App.DefaultAgent)
		if cfg.App.ScriptsFile != "" {
			if cat, err = persona.Load(cfg.App.ScriptsFile, cat); err != nil {
				return err
			}
		}
		for _, key := range cat.Keys() {
			p := cat.Get(key)
			mark := ""
			if key == cat.Default() {
				mark = " (default)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\tassistant=%s voice=%s prompt_driven=%v\n",
				key, mark, p.AssistantName, p.VoiceID, p.PromptDriven)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(personasCmd)
}
