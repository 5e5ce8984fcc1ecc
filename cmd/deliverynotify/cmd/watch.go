package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/lupppig/deliverynotify/internal/classify"
	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/events"
	dngrpc "github.com/lupppig/deliverynotify/internal/grpc"
	"github.com/lupppig/deliverynotify/internal/settings"
	"github.com/lupppig/deliverynotify/internal/toast"
)

var (
	watchOrderID string
	watchRoute   string
)

// bellFeedback rings the terminal bell for attention-worthy toasts.
type bellFeedback struct {
	w io.Writer
}

func (b bellFeedback) Play(cue toast.Cue) {
	if cue != toast.CueDefault {
		fmt.Fprint(b.w, "\a")
	}
}

func (bellFeedback) Vibrate([]int) {}

func fetchSettings(ctx context.Context) domain.NotificationSettings {
	var s domain.NotificationSettings
	if err := callAPI(ctx, http.MethodGet, "/settings/"+url.PathEscape(cfg.Client.UserID), nil, &s); err != nil {
		slog.Warn("using default notification settings", slog.String("code", "SETTINGS_ERROR"), slog.Any("error", err))
		return domain.DefaultSettings()
	}
	return s
}

func newToastQueue(s domain.NotificationSettings) *toast.Queue {
	return toast.NewQueue(toast.Config{
		Capacity:     cfg.Toast.Capacity,
		DedupWindow:  cfg.Toast.DedupWindow,
		Duration:     cfg.Toast.Duration,
		ChatDuration: cfg.Toast.ChatDuration,
	}, toast.WithSettings(s), toast.WithFeedback(bellFeedback{w: os.Stderr}))
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// printItems writes one JSON line per accepted item until the stream ends.
func printItems(w io.Writer, stream itemStream, queue *toast.Queue) error {
	enc := json.NewEncoder(w)
	for {
		item, err := stream.Recv()
		if err != nil {
			return ignoreEOF(err)
		}

		if item.Kind != events.KindEvent || item.Event == nil {
			enc.Encode(item)
			continue
		}
		t, ok := queue.Enqueue(*item.Event)
		if !ok {
			continue
		}
		enc.Encode(classify.Payload(settings.ApplyFeedback(t.Notification, queue.Settings()), item.At))
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show live delivery notifications as toasts",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := dialFeed()
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sctx, scancel := NewCommandContext(ctx)
		prefs := fetchSettings(sctx)
		scancel()
		queue := newToastQueue(prefs)

		// The feed stays open until the user quits, so no timeout here.
		stream, err := feedFactory(conn).Watch(ctx, dngrpc.WatchRequest{
			UserID:  cfg.Client.UserID,
			OrderID: watchOrderID,
			Route:   watchRoute,
		})
		if err != nil {
			return err
		}

		if IsQuiet() || IsJSONOutput() {
			return printItems(cmd.OutOrStdout(), stream, queue)
		}
		return runWatchUI(stream, queue)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchOrderID, "order", "", "Only follow this order")
	watchCmd.Flags().StringVar(&watchRoute, "route", "/", "Page this client reports as showing")
}
