// Package cmd implements the upcat command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/upcat-dev/upcat/internal/config"
	"github.com/upcat-dev/upcat/internal/engine"
)

var rootCmd = &cobra.Command{
	Use:   "upcat",
	Short: "Coordinated dependency updates for Gradle version catalogs",
	Long: "upcat resolves the versions in a Gradle version catalog against Maven\n" +
		"registries, honoring per-entry constraints and update policies, and applies\n" +
		"selected updates transactionally.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .upcat.toml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".upcat")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("UPCAT")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

func newCoordinator() (*engine.Coordinator, config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, config.Config{}, err
	}
	c, err := engine.New(cfg)
	if err != nil {
		return nil, config.Config{}, err
	}
	return c, cfg, nil
}

func colorEnabled() bool {
	noColor, _ := rootCmd.Flags().GetBool("no-color")
	return !noColor
}
