package main

import (
	"github.com/nulzo/anthropic-gateway/internal/config"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every backend subcommand.
var globalFlags = map[string]string{
	"auth-token": "server.auth_token",
	"host":       "server.host",
	"port":       "server.port",
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gateway",
		Short:        "Anthropic Messages API gateway for the direct API, Bedrock and Vertex AI",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file (default ./config.yaml)")
	root.PersistentFlags().String("auth-token", "", "shared token clients must send as x-api-key")
	root.PersistentFlags().String("host", "", "listen host")
	root.PersistentFlags().String("port", "", "listen port")

	root.AddCommand(
		backendCmd(config.KindAnthropic, "Serve through the Anthropic API", map[string]flagSpec{
			"api-key":  {"provider.anthropic.api_key", "Anthropic API key"},
			"base-url": {"provider.anthropic.base_url", "Anthropic API base URL"},
		}),
		backendCmd(config.KindBedrock, "Serve through AWS Bedrock", map[string]flagSpec{
			"region": {"provider.bedrock.region", "AWS region, defaults to the SDK resolution chain"},
		}),
		backendCmd(config.KindVertexAI, "Serve through Google Vertex AI", map[string]flagSpec{
			"project": {"provider.vertex.project", "Google Cloud project"},
			"region":  {"provider.vertex.region", "Vertex AI region, e.g. us-east5"},
		}),
		usageCmd(),
		versionCmd(),
	)

	return root
}

type flagSpec struct {
	key   string
	usage string
}

func backendCmd(kind, short string, flags map[string]flagSpec) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []config.Option{config.WithProvider(kind)}
			opts = append(opts, flagOptions(cmd)...)
			for name, spec := range flags {
				opts = append(opts, config.BindFlag(spec.key, cmd.Flags().Lookup(name)))
			}

			cfg, err := config.LoadConfig(opts...)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	for name, spec := range flags {
		cmd.Flags().String(name, "", spec.usage)
	}
	return cmd
}

// flagOptions binds the persistent flags shared by every subcommand.
func flagOptions(cmd *cobra.Command) []config.Option {
	path, _ := cmd.Flags().GetString("config")
	opts := []config.Option{config.WithConfigFile(path)}
	for name, key := range globalFlags {
		opts = append(opts, config.BindFlag(key, cmd.Flags().Lookup(name)))
	}
	return opts
}
