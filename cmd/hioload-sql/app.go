// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkt.systems/pslog"
)

const envPrefix = "HIOLOAD_SQL"

func newRootCommand(logger pslog.Logger) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "hioload-sql",
		Short:         "Single-loop TCP server answering table queries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfigFile(v)
		},
	}
	cmd.PersistentFlags().StringP("config", "c", "", "path to a YAML config file")
	mustBind(v, cmd.PersistentFlags(), "config")

	cmd.AddCommand(newServeCommand(v, logger))
	cmd.AddCommand(newQueryCommand(v))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// mustBind binds the named flags into v. Unknown names are programming
// errors.
func mustBind(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		flag := flags.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("flag %q not found", name))
		}
		if err := v.BindPFlag(name, flag); err != nil {
			panic(err)
		}
	}
}

func loadConfigFile(v *viper.Viper) error {
	path := strings.TrimSpace(v.GetString("config"))
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config file %q: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config file %q is a directory", path)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	return nil
}
