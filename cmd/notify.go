package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jooke-shop/sourcing-cli/internal/notify"
	"github.com/jooke-shop/sourcing-cli/pkg/kakao"
)

var (
	notifyTo   string
	notifyType string
	notifyData []string
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send an order notification",
	Long:  "Renders the template for --type with --data key=value pairs and sends it to --to. Without a configured gateway the message is only logged.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("notify"); err != nil {
			return err
		}
		data, err := parseKeyValues(notifyData)
		if err != nil {
			return err
		}

		res := newDispatcher().Send(cmd.Context(), notify.Request{
			Recipient:   notifyTo,
			MessageType: notifyType,
			Data:        data,
		})
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if res.Status != "success" {
			return eris.New("notify failed: " + res.Error)
		}
		return nil
	},
}

// newDispatcher returns a dispatcher on the configured gateway, or a dry-run
// dispatcher when none is set.
func newDispatcher() *notify.Dispatcher {
	if cfg.Kakao.GatewayURL == "" {
		return notify.NewDispatcher(nil)
	}
	return notify.NewDispatcher(kakao.NewClient(cfg.Kakao.GatewayURL, cfg.Kakao.APIKey, kakao.WithSenderKey(cfg.Kakao.SenderKey)))
}

// parseKeyValues turns key=value flags into template data.
func parseKeyValues(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, eris.Errorf("invalid --data %q, want key=value", kv)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func init() {
	notifyCmd.Flags().StringVar(&notifyTo, "to", "", "recipient phone number")
	notifyCmd.Flags().StringVar(&notifyType, "type", "", "message type: order_confirmed, shipped or delivered")
	notifyCmd.Flags().StringArrayVar(&notifyData, "data", nil, "template data as key=value (repeatable)")
	_ = notifyCmd.MarkFlagRequired("to")
	_ = notifyCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(notifyCmd)
}
