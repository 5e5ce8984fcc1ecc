package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupppig/deliverynotify/internal/agent"
)

func agentControl(ctx context.Context, control agent.ControlType) (*agent.Result, error) {
	var res agent.Result
	if err := callAPI(ctx, http.MethodPost, "/agent/control", map[string]agent.ControlType{"type": control}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func printResult(res *agent.Result) {
	if IsJSONOutput() {
		printJSON(res)
		return
	}
	switch {
	case res.Reply != nil && res.Reply.Version != "":
		fmt.Println(res.Reply.Version)
	case res.Reply != nil:
		fmt.Printf("%s (cleared %d)\n", res.Reply.Type, res.Reply.Cleared)
	case res.Intent != nil && res.Intent.URL != "":
		fmt.Printf("%s %s\n", res.Effect, res.Intent.URL)
	default:
		fmt.Println(res.Effect)
	}
}

func controlCommand(use, short string, control agent.ControlType) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := NewCommandContext(context.Background())
			defer cancel()

			res, err := agentControl(ctx, control)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Inspect and control the background agent",
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications the agent is displaying",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		var list []agent.Displayed
		if err := callAPI(ctx, http.MethodGet, "/agent/notifications", nil, &list); err != nil {
			return err
		}

		if IsJSONOutput() {
			printJSON(list)
			return nil
		}
		if len(list) == 0 {
			fmt.Println("No notifications displayed.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TAG\tTYPE\tTITLE\tSHOWS\tSHOWN AT")
		for _, d := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				d.Notification.Tag,
				d.Notification.Type,
				d.Notification.Title,
				d.Shows,
				d.ShownAt.Format(time.RFC3339),
			)
		}
		w.Flush()
		return nil
	},
}

var agentClickCmd = &cobra.Command{
	Use:   "click <tag> [action]",
	Short: "Click a displayed notification or one of its actions",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		body := map[string]string{}
		if len(args) == 2 {
			body["action"] = args[1]
		}
		var res agent.Result
		if err := callAPI(ctx, http.MethodPost, "/agent/notifications/"+url.PathEscape(args[0])+"/click", body, &res); err != nil {
			return err
		}
		printResult(&res)
		return nil
	},
}

var agentCloseCmd = &cobra.Command{
	Use:   "close <tag>",
	Short: "Close a displayed notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		var res agent.Result
		if err := callAPI(ctx, http.MethodPost, "/agent/notifications/"+url.PathEscape(args[0])+"/close", nil, &res); err != nil {
			return err
		}
		printResult(&res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(
		controlCommand("version", "Show the agent version", agent.ControlGetVersion),
		controlCommand("skip-waiting", "Activate a waiting agent version now", agent.ControlSkipWaiting),
		controlCommand("clear-cache", "Drop every cached shell resource", agent.ControlClearCache),
		agentListCmd,
		agentClickCmd,
		agentCloseCmd,
	)
}
