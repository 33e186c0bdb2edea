package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/nulzo/anthropic-gateway/internal/cli"
	"github.com/spf13/cobra"
)

// set with -ldflags "-X main.AppVersion=v1.2.3"
var (
	AppVersion  = "v0.0.0"
	releasesURL = "https://api.github.com/repos/nulzo/anthropic-gateway/releases/latest"
)

type GitHubRelease struct {
	TagName string `json:"tag_name"`
}

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version and check for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), AppVersion)

			if skip, _ := cmd.Flags().GetBool("offline"); skip {
				return nil
			}
			latest, newer, err := checkForUpdates(cmd.Context(), http.DefaultClient, releasesURL, AppVersion)
			if err != nil {
				return nil
			}
			if newer {
				fmt.Fprintf(cmd.OutOrStdout(), "%s A newer release is available: %s\n", cli.Arrow(), cli.Style(latest, cli.Yellow))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Up to date\n", cli.CheckMark())
			}
			return nil
		},
	}
	cmd.Flags().Bool("offline", false, "skip the release check")
	return cmd
}

// checkForUpdates compares current against the latest published release.
func checkForUpdates(ctx context.Context, client *http.Client, url, current string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", false, fmt.Errorf("release check returned %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", false, err
	}

	cur, err := version.NewVersion(current)
	if err != nil {
		return "", false, err
	}
	latest, err := version.NewVersion(release.TagName)
	if err != nil {
		return "", false, err
	}

	return release.TagName, cur.LessThan(latest), nil
}
