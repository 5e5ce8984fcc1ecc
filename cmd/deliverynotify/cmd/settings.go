package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lupppig/deliverynotify/internal/domain"
)

var settingsFlags = []struct {
	name  string
	usage string
	field func(p *domain.SettingsPatch) **bool
}{
	{"enabled", "Master switch", func(p *domain.SettingsPatch) **bool { return &p.Enabled }},
	{"order-updates", "Order confirmations and completions", func(p *domain.SettingsPatch) **bool { return &p.OrderUpdates }},
	{"driver-updates", "Driver assignment, approach and arrival", func(p *domain.SettingsPatch) **bool { return &p.DriverUpdates }},
	{"chat-messages", "Chat messages", func(p *domain.SettingsPatch) **bool { return &p.ChatMessages }},
	{"promotions", "Promotions", func(p *domain.SettingsPatch) **bool { return &p.Promotions }},
	{"sound", "Audio cues", func(p *domain.SettingsPatch) **bool { return &p.Sound }},
	{"vibration", "Vibration", func(p *domain.SettingsPatch) **bool { return &p.Vibration }},
}

func settingsPath() string {
	return "/settings/" + url.PathEscape(cfg.Client.UserID)
}

func printSettings(s domain.NotificationSettings) {
	if IsJSONOutput() {
		printJSON(s)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SETTING\tVALUE")
	fmt.Fprintf(w, "enabled\t%t\n", s.Enabled)
	fmt.Fprintf(w, "order-updates\t%t\n", s.OrderUpdates)
	fmt.Fprintf(w, "driver-updates\t%t\n", s.DriverUpdates)
	fmt.Fprintf(w, "chat-messages\t%t\n", s.ChatMessages)
	fmt.Fprintf(w, "promotions\t%t\n", s.Promotions)
	fmt.Fprintf(w, "sound\t%t\n", s.Sound)
	fmt.Fprintf(w, "vibration\t%t\n", s.Vibration)
	w.Flush()
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage notification settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show notification settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		var s domain.NotificationSettings
		if err := callAPI(ctx, http.MethodGet, settingsPath(), nil, &s); err != nil {
			return err
		}
		printSettings(s)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change notification settings",
	Long:  "Change notification settings. Only the flags given are changed, e.g. --promotions=true --sound=false.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch domain.SettingsPatch
		changed := 0
		for _, f := range settingsFlags {
			if !cmd.Flags().Changed(f.name) {
				continue
			}
			v, err := cmd.Flags().GetBool(f.name)
			if err != nil {
				return err
			}
			*f.field(&patch) = &v
			changed++
		}
		if changed == 0 {
			return fmt.Errorf("no settings given")
		}

		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		var s domain.NotificationSettings
		if err := callAPI(ctx, http.MethodPut, settingsPath(), patch, &s); err != nil {
			return err
		}
		if IsQuiet() {
			return nil
		}
		printSettings(s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	for _, f := range settingsFlags {
		settingsSetCmd.Flags().Bool(f.name, false, f.usage)
	}
}
