package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/secrets"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and bootstrap the config file.",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to the data directory if none exists.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.EnsureUserConfig(dataDir())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		abs, _ := filepath.Abs(path)
		fmt.Println(abs)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file and list problems.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		_, v := config.NormalizeAndValidate(cfg)
		for _, w := range v.Warnings {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}
		if err := v.Err(); err != nil {
			return err
		}
		fmt.Println("ok:", path)
		return nil
	},
}

var configDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the built-in default config.",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = os.Stdout.Write(config.DefaultYAML())
	},
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Store credentials in the OS keychain.",
}

var setDBTokenCmd = &cobra.Command{
	Use:   "set-db-token TOKEN",
	Short: "Store the libsql auth token.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return secrets.Set(secrets.DBTokenAccount, args[0])
	},
}

var setRedisPasswordCmd = &cobra.Command{
	Use:   "set-redis-password PASSWORD",
	Short: "Store the Redis password used by the commit lock.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return secrets.Set(secrets.RedisPasswordAccount, args[0])
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configPathCmd, configValidateCmd, configDefaultsCmd)
	secretsCmd.AddCommand(setDBTokenCmd, setRedisPasswordCmd)
	rootCmd.AddCommand(configCmd, secretsCmd)
}
