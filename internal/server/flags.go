package server

import (
	"github.com/spf13/viper"
)

// flagDef defines a command-line flag bound to a viper configuration key.
type (
	flagType interface {
		string | int | bool
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}
)

var (
	stringFlags = []flagDef[string]{
		// Transport
		{"listen-address", "server.listen-address", "127.0.0.1:8545", "JSON-RPC listen address"},
		{"metrics-path", "server.metrics-path", "/metrics", "HTTP path of the prometheus endpoint (empty disables it)"},
		{"read-header-timeout", "server.read-header-timeout", "10s", "HTTP read header timeout"},

		// Emulator
		{"proxy-address", "emulator.proxy-address", "0x1000000000000000000000000000000000000000", "NFT registry proxy address"},
		{"abi-dir", "emulator.abi-dir", "", "Directory with ERC20.json and RegistryProxy.json (empty uses the built-in ABIs)"},

		// Storage
		{"data-dir", "storage.data-dir", "./data", "Ledger database directory (empty keeps it in memory)"},
		{"fixtures", "storage.fixtures", "", "YAML ledger fixtures loaded at startup"},
		{"cache-ttl", "cache.ttl", "30s", "Lifetime of cached token and NFT lookups"},
	}

	intFlags = []flagDef[int]{
		{"cache-size", "cache.size", 4096, "Entries per lookup cache (0 disables caching)"},
	}

	boolFlags = []flagDef[bool]{
		{"strict-arguments", "emulator.strict-arguments", false, "Reject calls whose arguments do not decode"},
	}
)

func init() {
	if err := declareFlags(stringFlags); err != nil {
		panic(err)
	}
	if err := declareFlags(intFlags); err != nil {
		panic(err)
	}
	if err := declareFlags(boolFlags); err != nil {
		panic(err)
	}
}

// declareFlags declares multiple flags and binds them to viper configuration keys.
func declareFlags[T flagType](flags []flagDef[T]) error {
	for _, flag := range flags {
		if err := declareFlag(flag.name, flag.viperKey, flag.defaultValue, flag.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a single flag and binds it to a viper configuration key.
func declareFlag[T flagType](flagName, viperKey string, defaultValue T, description string) error {
	var zero T
	switch any(zero).(type) {
	case string:
		CMD.Flags().String(flagName, any(defaultValue).(string), description)
	case int:
		CMD.Flags().Int(flagName, any(defaultValue).(int), description)
	case bool:
		CMD.Flags().Bool(flagName, any(defaultValue).(bool), description)
	}
	return viper.BindPFlag(viperKey, CMD.Flags().Lookup(flagName))
}
