package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/ecobuddy/pkg/models"
)

var analyzeDays int

var totalLabels = map[models.ResourceType]string{
	models.Electric: "Electric",
	models.Water:    "Water",
	models.Waste:    "Waste",
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask the dashboard's AI assistant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Get resource conservation insights from the dashboard",
	RunE:  runInsights,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarise usage per resource type and rank the heaviest devices",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeDays, "days", 0, "days to analyze (default: sync.days from config, or 30)")
	rootCmd.AddCommand(chatCmd, insightsCmd, analyzeCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	msg := strings.Join(args, " ")
	fmt.Fprintf(cmd.OutOrStdout(), "You: %s\n", msg)

	reply, err := s.viewModel(cmd, 0).Chat(cmd.Context(), msg)
	if err != nil {
		s.log.WithError(err).Debug("chat failed")
		fmt.Fprintln(cmd.OutOrStdout(), "AI: Sorry, I'm having trouble connecting right now. Please try again later.")
		return hint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "AI: %s\n", reply)
	return nil
}

func runInsights(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "🤖 Generating insights...")
	insights, err := s.viewModel(cmd, 0).Insights(cmd.Context())
	if err != nil {
		return hint(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("=", 50))
	fmt.Fprintln(cmd.OutOrStdout(), "💡 RESOURCE CONSERVATION INSIGHTS")
	fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("=", 50))
	fmt.Fprintln(cmd.OutOrStdout(), insights)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	days := analyzeDays
	if days <= 0 {
		days = s.cfg.GetSyncDays()
	}

	a, err := s.viewModel(cmd, 0).Analyze(cmd.Context(), days)
	if err != nil {
		return hint(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Found %d devices and %d usage records since %s\n\n", a.Devices, a.Entries, a.Since.Format(models.DateLayout))
	fmt.Fprintf(out, "USAGE SUMMARY (last %d days):\n", days)
	for _, t := range models.ResourceTypes {
		fmt.Fprintf(out, "- Total %-9s %s %s\n", totalLabels[t]+":", humanize.CommafWithDigits(a.Totals[t], 2), t.TotalUnit())
	}

	if len(a.Top) > 0 {
		fmt.Fprintln(out, "\nHIGHEST USAGE DEVICES:")
		for i, dt := range a.Top {
			fmt.Fprintf(out, "%d. %s: %s %s\n", i+1, dt.Device.Name, models.FormatUsage(dt.Total), dt.Device.Type.TotalUnit())
		}
	}
	return nil
}
