package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lupppig/deliverynotify/internal/security"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an admin API key for the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := security.NewAdminKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}

		switch {
		case IsJSONOutput():
			printJSON(map[string]string{"key": key, "sha256": security.Digest(key)})
		case IsQuiet():
			fmt.Println(key)
		default:
			fmt.Println(titleStyle.Render("Admin API key"))
			fmt.Println(idStyle.Render(key))
			fmt.Println("Set it as server.admin_api_key (or DELIVERYNOTIFY_ADMIN_API_KEY) and client.api_key.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
