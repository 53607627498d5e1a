package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	disambiguationroutes "github.com/Ramsey-B/iris/pkg/routes/disambiguation"
)

func setupRebuildIndexCommand(rt *cliState) *cobra.Command {
	var server string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "rebuild-index",
		Short: "Ask a running server to rebuild its candidate index",
		Long: "The index lives in the server process, so rebuild-index calls the rebuild " +
			"endpoint of a running server instead of building one locally.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = fmt.Sprintf("http://localhost:%d", rt.cfg.Port)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := requestRebuild(ctx, server)
			if err != nil {
				return err
			}

			rt.logger.WithFields(map[string]any{
				"server":     server,
				"entities":   resp.Entities,
				"generation": resp.Generation,
			}).Info("Index rebuilt")

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Base URL of the iris server (default http://localhost:$PORT)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the rebuild")
	return cmd
}

func requestRebuild(ctx context.Context, server string) (*disambiguationroutes.RebuildResponse, error) {
	url := strings.TrimRight(server, "/") + "/api/v1/disambiguation/index/rebuild"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", server, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(res.Body).Decode(&body)
		return nil, fmt.Errorf("rebuild failed with status %d: %s", res.StatusCode, body.Message)
	}

	var out disambiguationroutes.RebuildResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode rebuild response: %w", err)
	}
	return &out, nil
}
