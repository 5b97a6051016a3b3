// Package cmd wires the curator CLI: the root command, configuration
// loading, and the run/sessions/config subcommands.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mbaylis/curator/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Interactive data labeling sessions",
	Long: `Curator runs human-in-the-loop data labeling sessions: it posts
items from an input directory one batch at a time, the operator assigns
tags to each item, and the results are recorded durably so sessions can
be paused, resumed, and run side by side.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/curator/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults first so they apply even without a config file.
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CURATOR")
	// CURATOR_OPERATOR_ID for operator.id, and so on.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing config file is fine; defaults and env cover it.
	_ = viper.ReadInConfig()
}
