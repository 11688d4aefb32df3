package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/ecobuddy/internal/database"
	"github.com/jgoulah/ecobuddy/internal/publisher"
	"github.com/jgoulah/ecobuddy/pkg/models"
)

var (
	publishAll   bool
	publishLimit int
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish synced usage to MQTT and/or Home Assistant",
	Long: `Reads usage stored by 'ecobuddy sync' and publishes each device's computed
daily usage to the MQTT broker and/or Home Assistant configured in config.yaml.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all records (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	// Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := newLogger(cfg)

	// Create publisher
	pub, err := publisher.New(cfg.MQTT, cfg.GetTopicPrefix(), cfg.HomeAssistant, log)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	// Open database
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var data []database.StoredUsage
	if publishAll {
		data, err = db.ListUsage(0)
	} else {
		data, err = db.ListUnpublishedUsage()
	}
	if err != nil {
		return fmt.Errorf("listing data: %w", err)
	}

	if len(data) == 0 {
		fmt.Fprintln(out, "No unpublished data found")
		return nil
	}

	// Apply limit if specified
	if publishLimit > 0 && len(data) > publishLimit {
		data = data[:publishLimit]
		fmt.Fprintf(out, "Limiting to %d records (--limit flag)\n", publishLimit)
	}

	published := 0
	for i, record := range data {
		fmt.Fprintf(out, "[%d/%d] Publishing %s %s (%s %s)... ", i+1, len(data), record.Device.Name,
			record.Entry.Date.Format(models.DateLayout), models.FormatUsage(record.Usage), record.Device.Type.TotalUnit())
		if err := pub.Publish(record); err != nil {
			fmt.Fprintf(out, "FAILED: %v\n", err)
			continue
		}

		// Mark record as published in database
		if err := db.MarkPublished(record.ID); err != nil {
			fmt.Fprintf(out, "✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Fprintln(out, "✓")
		}
		published++
	}

	fmt.Fprintf(out, "\nSuccessfully published %d/%d records\n", published, len(data))
	return nil
}
