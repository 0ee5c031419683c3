package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var pingURL string

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check a resident connector's admin ping resource.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(pingURL + "/admin/ping")
		if err != nil {
			fmt.Fprintf(os.Stderr, "ping failed: %s\n", err)
			exitCode = 1
			return nil
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "ping failed: %s\n", resp.Status)
			exitCode = 1
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fmt.Println(string(body))
		return nil
	},
}

func init() {
	pingCmd.Flags().StringVar(&pingURL, "url", "http://127.0.0.1:8080", "base URL of the resident connector")
}
