package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/voiceboard-ai/voiceboard/internal/board"
)

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "settings",
		Short:         "Inspect and change daemon settings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newSettingsGetCommand(), newSettingsSetCommand(), newSettingsSetKeyCommand())
	return cmd
}

func fetchSettings(cmd *cobra.Command) (board.Settings, error) {
	var settings board.Settings
	err := newAPIClient(cmd).getJSON("/api/config/settings", &settings)
	return settings, err
}

func storeSettings(cmd *cobra.Command, settings board.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return newAPIClient(cmd).putJSON("/api/config/settings", raw, nil)
}

func newSettingsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "get",
		Short:         "Show current settings",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			settings, err := fetchSettings(cmd)
			if err != nil {
				return formatter.Error("Failed to fetch settings", err)
			}

			masked := "(not set)"
			if settings.APIKey != "" {
				masked = "****" + tail(settings.APIKey, 4)
			}
			if formatter.jsonMode {
				return formatter.Print(map[string]interface{}{
					"apiKey":       masked,
					"voiceId":      settings.VoiceID,
					"audioQuality": settings.AudioQuality,
					"volume":       settings.EffectiveVolume(),
				})
			}
			return formatter.Print(fmt.Sprintf(
				"api key: %s\nvoice: %s\nquality: %s\nvolume: %.2f",
				masked, settings.VoiceID, settings.AudioQuality, settings.EffectiveVolume()))
		},
	}
}

func newSettingsSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "set",
		Short:         "Update settings fields",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			settings, err := fetchSettings(cmd)
			if err != nil {
				return formatter.Error("Failed to fetch settings", err)
			}

			changed := false
			if v, _ := cmd.Flags().GetString("voice"); v != "" {
				settings.VoiceID = v
				changed = true
			}
			if v, _ := cmd.Flags().GetString("quality"); v != "" {
				settings.AudioQuality = v
				changed = true
			}
			if v, _ := cmd.Flags().GetString("volume"); v != "" {
				volume, err := strconv.ParseFloat(v, 64)
				if err != nil || volume < 0 || volume > 1 {
					return formatter.Error("Volume must be a number between 0 and 1", err)
				}
				settings.Volume = volume
				changed = true
			}
			if !changed {
				return formatter.Error("Nothing to change; pass --voice, --quality or --volume", nil)
			}

			if err := storeSettings(cmd, settings); err != nil {
				return formatter.Error("Failed to store settings", err)
			}
			return formatter.Success("Settings updated", nil)
		},
	}
	cmd.Flags().String("voice", "", "Synthesis voice identifier")
	cmd.Flags().String("quality", "", "Audio quality tier (low, medium, high, highest)")
	cmd.Flags().String("volume", "", "Playback volume between 0 and 1")
	return cmd
}

func newSettingsSetKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "set-api-key",
		Short:         "Store the generation API key (prompted, not echoed)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			settings, err := fetchSettings(cmd)
			if err != nil {
				return formatter.Error("Failed to fetch settings", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), "API key: ")
			key, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return formatter.Error("Failed to read key", err)
			}
			if len(key) == 0 {
				return formatter.Error("Empty key, nothing stored", nil)
			}

			settings.APIKey = string(key)
			if err := storeSettings(cmd, settings); err != nil {
				return formatter.Error("Failed to store settings", err)
			}
			return formatter.Success("API key stored", nil)
		},
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
