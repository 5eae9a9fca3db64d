package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/voiceboard-ai/voiceboard/internal/audiostore"
	"github.com/voiceboard-ai/voiceboard/internal/backup"
	boardversion "github.com/voiceboard-ai/voiceboard/internal/version"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show daemon status",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			var status struct {
				Version          string `json:"version"`
				Configured       bool   `json:"configured"`
				PlaybackAttached bool   `json:"playbackAttached"`
			}
			if err := newAPIClient(cmd).getJSON("/api/status", &status); err != nil {
				return formatter.Error("Failed to reach daemon", err)
			}
			if warning := boardversion.CheckVersionMismatch(status.Version); warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			if formatter.jsonMode {
				return formatter.Print(status)
			}
			return formatter.Print(fmt.Sprintf(
				"daemon %s\napi key configured: %v\nplayback client attached: %v",
				status.Version, status.Configured, status.PlaybackAttached))
		},
	}
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show audio cache statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			var stats audiostore.Stats
			if err := newAPIClient(cmd).getJSON("/api/cache/stats", &stats); err != nil {
				return formatter.Error("Failed to fetch cache stats", err)
			}
			if formatter.jsonMode {
				return formatter.Print(stats)
			}
			out := fmt.Sprintf("files: %d\ntotal size: %d bytes", stats.TotalFiles, stats.TotalSize)
			for audioType, ts := range stats.ByType {
				out += fmt.Sprintf("\n  %s: %d files, %d bytes", audioType, ts.Count, ts.Size)
			}
			return formatter.Print(out)
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "sweep",
		Short:         "Purge stale speech entries from the audio cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			var result map[string]int64
			if err := newAPIClient(cmd).postJSON("/api/cache/sweep", nil, &result); err != nil {
				return formatter.Error("Sweep failed", err)
			}
			return formatter.Success(
				fmt.Sprintf("Removed %d stale entries", result["removed"]),
				map[string]interface{}{"removed": result["removed"]},
			)
		},
	}
}

func newClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "clear",
		Short:         "Delete every entry in the audio cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			confirmed, _ := cmd.Flags().GetBool("yes")
			if !confirmed {
				return formatter.Error("Refusing to clear the cache without --yes", nil)
			}
			if err := newAPIClient(cmd).delete("/api/cache/", nil); err != nil {
				return formatter.Error("Clear failed", err)
			}
			return formatter.Success("Audio cache cleared", nil)
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deletion")
	return cmd
}

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "stop",
		Short:         "Stop any playing audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			if err := newAPIClient(cmd).postJSON("/api/playback/stop", nil, nil); err != nil {
				return formatter.Error("Stop failed", err)
			}
			return formatter.Success("Playback stopped", nil)
		},
	}
}

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "export [file]",
		Short:         "Export configuration and cached audio to a backup archive",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			description, _ := cmd.Flags().GetString("description")

			path := "/api/backup/export"
			if description != "" {
				path += "?description=" + url.QueryEscape(description)
			}
			fileName, size, err := newAPIClient(cmd).download(path, target)
			if err != nil {
				return formatter.Error("Export failed", err)
			}
			return formatter.Success(
				fmt.Sprintf("Exported backup to %s (%d bytes)", fileName, size),
				map[string]interface{}{"fileName": fileName, "byteSize": size},
			)
		},
	}
	cmd.Flags().String("description", "", "Description stored in the archive manifest")
	return cmd
}

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "import <file>",
		Short:         "Restore configuration and cached audio from a backup archive",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newOutputFormatter(cmd)
			replace, _ := cmd.Flags().GetBool("replace")

			fields := map[string]string{}
			if replace {
				fields["replaceExisting"] = "true"
			}
			var result backup.ImportResult
			if err := newAPIClient(cmd).upload("/api/backup/import", args[0], fields, &result); err != nil {
				return formatter.Error("Import failed", err)
			}
			if formatter.jsonMode {
				return formatter.Print(result)
			}
			return formatter.Print(fmt.Sprintf(
				"restored %d audio entries\nsettings: %v, grid: %v, category names: %v, customizations: %v",
				result.AudioCount, result.SettingsRestored, result.GridDataRestored,
				result.CategoryNamesRestored, result.CustomizationsRestored))
		},
	}
	cmd.Flags().Bool("replace", false, "Clear the audio cache before importing")
	return cmd
}
