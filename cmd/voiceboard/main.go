package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	boardversion "github.com/voiceboard-ai/voiceboard/internal/version"
)

var rootCmd *cobra.Command

// defaultAddr is where the daemon listens. Loopback only: the board talks
// to its own machine's daemon.
const defaultAddr = "127.0.0.1:8790"

// OutputFormatter handles output in JSON or human-readable format
type OutputFormatter struct {
	jsonMode bool
}

// newOutputFormatter creates a new formatter based on the command's --json flag
func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode}
}

// Print outputs data in the appropriate format
func (f *OutputFormatter) Print(data interface{}) error {
	if f.jsonMode {
		jsonBytes, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(jsonBytes))
		return nil
	}
	switch v := data.(type) {
	case string:
		fmt.Println(v)
	default:
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	}
	return nil
}

// Success outputs a success message
func (f *OutputFormatter) Success(message string, data map[string]interface{}) error {
	if f.jsonMode {
		output := map[string]interface{}{
			"success": true,
			"message": message,
		}
		for k, v := range data {
			output[k] = v
		}
		return f.Print(output)
	}
	fmt.Println(message)
	return nil
}

// Error outputs an error message
func (f *OutputFormatter) Error(message string, err error) error {
	if f.jsonMode {
		output := map[string]interface{}{
			"success": false,
			"error":   message,
		}
		if err != nil {
			output["details"] = err.Error()
		}
		jsonBytes, _ := json.MarshalIndent(output, "", "  ")
		fmt.Fprintln(os.Stderr, string(jsonBytes))
	} else {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", message, err)
		} else {
			fmt.Fprintln(os.Stderr, message)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", message, err)
	}
	return fmt.Errorf("%s", message)
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "voiceboard",
		Short: "Voiceboard - local audio daemon for the AAC communication board",
		Long: `Voiceboard generates, caches and plays audio for a grid-based
communication board. It keeps generated clips in a local store so buttons
replay instantly, and serves the board UI over a local HTTP and websocket
API.`,
	}
	rootCmd.Version = boardversion.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("addr", defaultAddr, "Daemon address")
}

func main() {
	rootCmd.AddCommand(
		newServeCommand(),
		newStatusCommand(),
		newStatsCommand(),
		newSweepCommand(),
		newClearCommand(),
		newStopCommand(),
		newExportCommand(),
		newImportCommand(),
		newVoicesCommand(),
		newSettingsCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
