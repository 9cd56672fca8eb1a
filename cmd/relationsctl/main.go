package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zereker/relations/internal/api/client"
	"github.com/Zereker/relations/internal/domain"
)

var globalFlags struct {
	baseURL     string
	accessToken string
	apiVersion  string
	timeout     time.Duration
}

var rootCmd = &cobra.Command{
	Use:           "relationsctl",
	Short:         "Query relating events from a homeserver",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&globalFlags.baseURL, "base-url", envOr("RELATIONS_BASE_URL", "http://127.0.0.1:8008"), "homeserver base URL")
	f.StringVar(&globalFlags.accessToken, "access-token", os.Getenv("RELATIONS_ACCESS_TOKEN"), "access token sent as bearer credential")
	f.StringVar(&globalFlags.apiVersion, "api-version", string(domain.VersionV1), "path prefix version: v1 or unstable")
	f.DurationVar(&globalFlags.timeout, "timeout", 30*time.Second, "per request timeout")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() (*client.Client, error) {
	return client.New(client.Config{
		BaseURL:     globalFlags.baseURL,
		AccessToken: globalFlags.accessToken,
		Version:     domain.Version(globalFlags.apiVersion),
		Timeout:     globalFlags.timeout,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
