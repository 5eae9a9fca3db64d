package main

import (
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voiceboard-ai/voiceboard/internal/elevenlabs"
)

func newVoicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voices [query]",
		Short:         "Search the synthesis voice catalog",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runVoices,
	}
	cmd.Flags().String("category", "", "Filter by voice category")
	cmd.Flags().String("language", "", "Filter by language")
	cmd.Flags().String("accent", "", "Filter by accent")
	cmd.Flags().String("age", "", "Filter by age")
	cmd.Flags().String("gender", "", "Filter by gender")
	cmd.Flags().String("use-case", "", "Filter by use case")
	return cmd
}

func runVoices(cmd *cobra.Command, args []string) error {
	formatter := newOutputFormatter(cmd)

	params := url.Values{}
	if len(args) == 1 {
		params.Set("query", args[0])
	}
	for flag, param := range map[string]string{
		"category": "category",
		"language": "language",
		"accent":   "accent",
		"age":      "age",
		"gender":   "gender",
		"use-case": "useCase",
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			params.Set(param, v)
		}
	}

	path := "/api/voices"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var voices []elevenlabs.Voice
	if err := newAPIClient(cmd).getJSON(path, &voices); err != nil {
		return formatter.Error("Voice search failed", err)
	}

	if formatter.jsonMode {
		return formatter.Print(voices)
	}
	if len(voices) == 0 {
		return formatter.Print("no voices matched")
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VOICE ID\tNAME\tCATEGORY")
	for _, v := range voices {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.VoiceID, v.Name, v.Category)
	}
	return w.Flush()
}
