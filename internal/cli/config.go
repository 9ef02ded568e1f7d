package cli

import (
	"context"
	"encoding/json"

	flag "github.com/spf13/pflag"
)

func newConfigCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("config", flag.ContinueOnError),
		Usage: "config",
		Short: "Print the effective staging configuration",
		Long: "Print the staging configuration after applying the config file\n" +
			"and the STAGING_* environment variables.",
		Exec: func(_ context.Context, env *Env, _ []string) error {
			cfg, err := env.StageConfig()
			if err != nil {
				return err
			}
			raw, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			env.IO.Println(string(raw))
			return nil
		},
	}
}
