package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/lupppig/deliverynotify/internal/domain"
)

var (
	sendPayloadPath string
	sendRawPayload  string
	sendAudience    string
)

// sendPayload is a delivery event plus the audience to send it to.
type sendPayload struct {
	domain.DeliveryEvent
	TargetAudience string `json:"targetAudience,omitempty"`
}

func (p sendPayload) validate() error {
	if p.Type == "" {
		return fmt.Errorf("payload is missing the event type")
	}
	if _, err := domain.ParseAudience(p.TargetAudience); err != nil {
		return err
	}
	return nil
}

func postSend(ctx context.Context, p sendPayload) (*domain.Dispatch, error) {
	var d domain.Dispatch
	if err := callAPI(ctx, http.MethodPost, "/notifications/send", p, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a delivery event to an audience",
	Long: `Send a delivery event. The payload is the event JSON, for example

  {"type": "driver_approaching", "orderId": "1234", "driverName": "Ali", "eta": 5}

The audience is "all", "user:<id>" or "order:<id>".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendPayloadPath == "" && sendRawPayload == "" {
			return fmt.Errorf("must provide either --payload or --raw")
		}
		if sendPayloadPath != "" && sendRawPayload != "" {
			return fmt.Errorf("cannot provide both --payload and --raw")
		}

		var data []byte
		var err error
		if sendPayloadPath != "" {
			data, err = os.ReadFile(sendPayloadPath)
			if err != nil {
				return fmt.Errorf("read payload file: %w", err)
			}
		} else {
			data = []byte(sendRawPayload)
		}

		var p sendPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("parse JSON payload: %w", err)
		}
		if cmd.Flags().Changed("audience") || p.TargetAudience == "" {
			p.TargetAudience = sendAudience
		}

		if IsQuiet() || IsJSONOutput() {
			if err := p.validate(); err != nil {
				return err
			}
			ctx, cancel := NewCommandContext(context.Background())
			defer cancel()

			d, err := postSend(ctx, p)
			if err != nil {
				return err
			}

			if IsQuiet() {
				fmt.Println(d.ID)
			} else {
				printJSON(d)
			}
			return nil
		}

		return NewUI(NewSendModel(p)).Run()
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendPayloadPath, "payload", "", "Path to JSON payload file")
	sendCmd.Flags().StringVar(&sendRawPayload, "raw", "", "Raw JSON payload string")
	sendCmd.Flags().StringVar(&sendAudience, "audience", "all", "Target audience: all, user:<id> or order:<id>")
}
