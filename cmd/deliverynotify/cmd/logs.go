package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupppig/deliverynotify/internal/domain"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View recent notification dispatches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		var list []*domain.Dispatch
		if err := callAPI(ctx, http.MethodGet, fmt.Sprintf("/notifications/dispatches?limit=%d", logsLimit), nil, &list); err != nil {
			return err
		}

		if IsJSONOutput() {
			printJSON(list)
			return nil
		}

		if len(list) == 0 {
			fmt.Println("No dispatches found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tTAG\tAUDIENCE\tRECIPIENTS\tCREATED AT")
		for _, d := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				d.ID,
				d.Type,
				d.Tag,
				d.Audience,
				d.Recipients,
				d.CreatedAt.Format(time.RFC3339),
			)
		}
		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVar(&logsLimit, "limit", 20, "Number of dispatches to show")
}
