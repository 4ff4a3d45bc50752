package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// HealthResponse mirrors the /health payload.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

var errInvalidHealthResponse = errors.New("invalid health response")

func newHealthcheckCommand() *cobra.Command {
	var timeout time.Duration
	var url string

	healthcheckCmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by the container HEALTHCHECK. A "degraded" server
(for example sqlite without a job queue) still counts as healthy.

Exit codes:
  0 - Server is healthy or degraded
  1 - Server is unhealthy or unreachable
  2 - Invalid response from server`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := url
			if target == "" {
				port := os.Getenv("SERVER_PORT")
				if port == "" {
					port = "8080"
				}
				target = fmt.Sprintf("http://localhost:%s/health", port)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			health, err := checkHealth(ctx, http.DefaultClient, target)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Health check failed: %v\n", err)
				if errors.Is(err, errInvalidHealthResponse) {
					os.Exit(2)
				}
				os.Exit(1)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server status: %s\n", health.Status)
			return nil
		},
	}

	healthcheckCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	healthcheckCmd.Flags().StringVar(&url, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	return healthcheckCmd
}

// checkHealth returns an error unless the server reports healthy or
// degraded.
func checkHealth(ctx context.Context, client *http.Client, url string) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidHealthResponse, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &health, fmt.Errorf("unhealthy: status %d (%s)", resp.StatusCode, health.Status)
	}
	switch health.Status {
	case "healthy", "degraded":
		return &health, nil
	}
	return &health, fmt.Errorf("unhealthy: status=%s", health.Status)
}
