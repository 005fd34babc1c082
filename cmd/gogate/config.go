package main

import (
	"encoding/json"
	"fmt"

	goGate "github.com/MrEthical07/goGate"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the environment configuration",
	}
	cmd.AddCommand(configCheckCmd())
	return cmd
}

// redactedConfig is the printable view of the configuration; secrets are
// reported as set or unset only.
type redactedConfig struct {
	DiscoveryURL     string `json:"discoveryUrl"`
	ClientID         string `json:"clientId"`
	ClientSecretSet  bool   `json:"clientSecretSet"`
	ServiceID        string `json:"serviceId"`
	CallbackURL      string `json:"callbackUrl"`
	RefreshBuffer    string `json:"refreshBuffer"`
	RefreshTimeout   string `json:"refreshTimeout"`
	SingleFlight     bool   `json:"singleFlight"`
	TraceHeader      string `json:"traceHeader"`
	SessionEngine    string `json:"sessionEngine"`
	SessionTTL       string `json:"sessionTtl"`
	RedisHost        string `json:"redisHost,omitempty"`
	RedisTLS         bool   `json:"redisTls,omitempty"`
	RedisPasswordSet bool   `json:"redisPasswordSet,omitempty"`
	LoginPath        string `json:"loginPath"`
	Port             int    `json:"port"`
}

func redact(cfg goGate.Config) redactedConfig {
	out := redactedConfig{
		DiscoveryURL:    cfg.OIDC.DiscoveryURL,
		ClientID:        cfg.OIDC.ClientID,
		ClientSecretSet: cfg.OIDC.ClientSecret != "",
		ServiceID:       cfg.OIDC.ServiceID,
		CallbackURL:     cfg.CallbackURL(),
		RefreshBuffer:   cfg.Refresh.Buffer().String(),
		RefreshTimeout:  cfg.Refresh.Timeout.String(),
		SingleFlight:    cfg.Refresh.SingleFlight,
		TraceHeader:     cfg.Tracing.Header,
		SessionEngine:   cfg.Session.Engine,
		SessionTTL:      cfg.Session.TTL.String(),
		LoginPath:       cfg.Redirect.LoginPath,
		Port:            cfg.Server.Port,
	}
	if cfg.Session.Engine == goGate.EngineRedis {
		out.RedisHost = cfg.Redis.Host
		out.RedisTLS = cfg.Redis.TLS
		out.RedisPasswordSet = cfg.Redis.Password != ""
	}
	return out
}

func configCheckCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration from the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := goGate.LoadConfigFromEnv()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if quiet {
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(redact(cfg)); err != nil {
				return fmt.Errorf("print config: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only report errors")
	return cmd
}
