package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lupppig/deliverynotify/internal/subscription"
)

var promptIn io.Reader = os.Stdin

// linePrompter asks a yes/no question on out and reads the answer from in.
func linePrompter(in io.Reader, out io.Writer) subscription.Prompter {
	reader := bufio.NewReader(in)
	return func(question string) (bool, error) {
		fmt.Fprintf(out, "%s [y/N] ", question)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

func newSubscriptionManager(out io.Writer) *subscription.Manager {
	platform := subscription.NewDevicePlatform(cfg.Client.StateDir, cfg.Client.APIURL, cfg.Client.UserID, linePrompter(promptIn, out))
	storage := subscription.NewHTTPStorage(newAPIClient(), cfg.Client.APIURL)
	return subscription.NewManager(platform, storage)
}

func reportSubscription(m *subscription.Manager, title string, err error) error {
	snap := m.Snapshot()
	switch {
	case IsQuiet():
		if err == nil {
			fmt.Println(snap.State)
		}
		return err
	case IsJSONOutput():
		if err == nil {
			printJSON(snap)
		}
		return err
	}

	msg := fmt.Sprintf("State: %s (permission %s)", snap.State, snap.Permission)
	status := StatusModel{Title: title, Message: msg, Err: err}
	if snap.Subscription != nil {
		status.ID = snap.Subscription.ID
		status.Detail = snap.Subscription.Endpoint
	}
	if uiErr := NewUI(status).Run(); uiErr != nil {
		return uiErr
	}
	return err
}

var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Ask for notification permission on this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		m := newSubscriptionManager(cmd.ErrOrStderr())
		m.Probe(ctx)
		err := m.RequestPermission(ctx)
		return reportSubscription(m, "Notification permission", err)
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Register this device for push notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		m := newSubscriptionManager(cmd.ErrOrStderr())
		if m.Probe(ctx) == subscription.StateDefault {
			if err := m.RequestPermission(ctx); err != nil {
				return reportSubscription(m, "Subscribe", err)
			}
		}
		_, err := m.Subscribe(ctx)
		return reportSubscription(m, "Subscribe", err)
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe",
	Short: "Remove this device's push registration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		m := newSubscriptionManager(cmd.ErrOrStderr())
		m.Probe(ctx)
		err := m.Unsubscribe(ctx)
		return reportSubscription(m, "Unsubscribe", err)
	},
}

var subscriptionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show this device's permission and subscription state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		m := newSubscriptionManager(cmd.ErrOrStderr())
		m.Probe(ctx)
		return reportSubscription(m, "Subscription status", nil)
	},
}

func init() {
	rootCmd.AddCommand(permissionCmd, subscribeCmd, unsubscribeCmd, subscriptionStatusCmd)
}
