// Command reconctl is an operator CLI for the Job API Facade's REST
// surface: submit scans, list and inspect jobs, and tear them down, without
// reaching for curl. It is a thin HTTP client, not a second implementation
// of the facade — every subcommand maps onto exactly one router.go route.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	client    = &http.Client{Timeout: 30 * time.Second}
)

func main() {
	root := &cobra.Command{
		Use:   "reconctl",
		Short: "Operate a running reconctl service over its REST API",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("RECONCTL_SERVER_URL", "http://localhost:8080"), "base URL of the reconctl service")

	root.AddCommand(
		submitCmd(),
		listCmd(),
		getCmd(),
		deleteCmd(),
		leakScanCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func submitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <domain>",
		Short: "Queue a full scan for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRequest(http.MethodPost, "/api/v1/scans", map[string]string{"domain": args[0]})
		},
	}
}

func listCmd() *cobra.Command {
	var limit, offset int
	c := &cobra.Command{
		Use:   "list",
		Short: "List scan jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRequest(http.MethodGet, fmt.Sprintf("/api/v1/scans?limit=%d&offset=%d", limit, offset), nil)
		},
	}
	c.Flags().IntVar(&limit, "limit", 50, "max jobs to return")
	c.Flags().IntVar(&offset, "offset", 0, "pagination offset")
	return c
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one scan job and its findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRequest(http.MethodGet, "/api/v1/scans/"+args[0], nil)
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a scan job and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRequest(http.MethodDelete, "/api/v1/scans/"+args[0], nil)
		},
	}
}

func leakScanCmd() *cobra.Command {
	var mode string
	c := &cobra.Command{
		Use:   "leak-scan <job-id> <url>...",
		Short: "Run a selective leak scan against specific URLs from a job",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"urls": args[1:], "mode": mode}
			return doRequest(http.MethodPost, "/api/v1/scans/"+args[0]+"/leak-scan", body)
		},
	}
	c.Flags().StringVar(&mode, "mode", "tiny", "leak scan mode (tiny|full)")
	return c
}

func doRequest(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}
