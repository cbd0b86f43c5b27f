package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compose-network/web3call/configs"
	"github.com/compose-network/web3call/internal/inspect"
	"github.com/compose-network/web3call/internal/logger"
	"github.com/compose-network/web3call/internal/probe"
	"github.com/compose-network/web3call/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "web3call"

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "eth_call emulator for virtual ERC-20 tokens and the NFT registry proxy",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Initialize(slog.LevelInfo, logger.FormatJSON)

		if err := configs.SetDefaults(viper.GetViper()); err != nil {
			const errMsg = "unable to load default config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		if path, _ := cmd.Flags().GetString("config"); path != "" {
			viper.SetConfigFile(path)
		} else {
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")

			if execPath, err := os.Executable(); err == nil {
				execDir := filepath.Dir(execPath)
				viper.AddConfigPath(execDir)
			}
			viper.AddConfigPath(".")
			viper.AddConfigPath("./configs")
		}

		// A missing config file is fine: embedded defaults and flags cover every key
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				slog.Debug("no config file found, will rely on flags and defaults")
			} else {
				const errMsg = "error reading config file"
				slog.With("err", err.Error()).Error(errMsg)
				return errors.Join(err, errors.New(errMsg))
			}
		} else {
			slog.With("config_file", viper.ConfigFileUsed()).Debug("config file loaded")
		}

		if err := viper.Unmarshal(&configs.Values); err != nil {
			const errMsg = "unable to decode application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		if err := configs.Values.Log.Validate(); err != nil {
			return err
		}
		level, _ := logger.ParseLevel(configs.Values.Log.Level)
		format, _ := logger.ParseFormat(configs.Values.Log.Format)
		logger.Initialize(level, format)

		slog.With("config", configs.Values).Debug("configuration loaded")

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json or text)")
	rootCmd.PersistentFlags().String("config", "", "Config file (defaults to config.yaml next to the binary, in . or ./configs)")

	for flag, key := range map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func main() {
	rootCmd.AddCommand(server.CMD)
	rootCmd.AddCommand(inspect.CMD)
	rootCmd.AddCommand(probe.CMD)

	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		os.Exit(1)
	}
}
