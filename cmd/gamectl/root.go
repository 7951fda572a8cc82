package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the connection settings shared by every subcommand.
type Config struct {
	server   string
	adminKey string
	redisURL string
	timeout  time.Duration
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.server) == "" {
		return errors.New("--server is required")
	}
	if strings.TrimSpace(c.adminKey) == "" {
		return errors.New("--admin-key is required")
	}
	return nil
}

func newRootCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GAMECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "gamectl",
		Short:         "Operator console for running Blackout sessions.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.server, "server", "s", "http://localhost:8686", "API base URL (env: GAMECTL_SERVER)")
	fs.StringVarP(&cfg.adminKey, "admin-key", "k", "", "shared admin key (env: GAMECTL_ADMIN_KEY)")
	fs.StringVar(&cfg.redisURL, "redis-url", "redis://localhost:6379/0", "redis URL for watch (env: GAMECTL_REDIS_URL)")
	fs.DurationVar(&cfg.timeout, "timeout", 15*time.Second, "per-request timeout (env: GAMECTL_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(
		newMessageCmd(cfg),
		newGlitchCmd(cfg),
		newSkipCmd(cfg),
		newResetCmd(cfg),
		newDeleteCmd(cfg),
		newListCmd(cfg),
		newArchiveCmd(cfg),
		newDebriefCmd(cfg),
		newWatchCmd(cfg),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("gamectl v{{.Version}}\n")

	return cmd
}
