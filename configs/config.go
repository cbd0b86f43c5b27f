package configs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/compose-network/web3call/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

var Values Config

type (
	Config struct {
		Log      Log      `mapstructure:"log"`
		Server   Server   `mapstructure:"server"`
		Emulator Emulator `mapstructure:"emulator"`
		Storage  Storage  `mapstructure:"storage"`
		Cache    Cache    `mapstructure:"cache"`
	}

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}

	Server struct {
		ListenAddress     string        `mapstructure:"listen-address"`
		MetricsPath       string        `mapstructure:"metrics-path"`
		ReadHeaderTimeout time.Duration `mapstructure:"read-header-timeout"`
	}

	Emulator struct {
		ProxyAddress    string `mapstructure:"proxy-address"`
		ABIDir          string `mapstructure:"abi-dir"`
		StrictArguments bool   `mapstructure:"strict-arguments"`
	}

	Storage struct {
		DataDir  string `mapstructure:"data-dir"`
		Fixtures string `mapstructure:"fixtures"`
	}

	Cache struct {
		Size int           `mapstructure:"size"`
		TTL  time.Duration `mapstructure:"ttl"`
	}
)

func (c *Config) Validate() error {
	var errs []error
	for _, validate := range []func() error{
		c.Log.Validate,
		c.Server.Validate,
		c.Emulator.Validate,
		c.Cache.Validate,
	} {
		if err := validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Log) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := logger.ParseFormat(c.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("log configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (c *Server) Validate() error {
	var errs []error

	if c.ListenAddress == "" {
		errs = append(errs, errors.New("server.listen-address is required"))
	}
	if c.MetricsPath != "" && (!strings.HasPrefix(c.MetricsPath, "/") || c.MetricsPath == "/") {
		errs = append(errs, errors.New("server.metrics-path must start with '/' and must not be the JSON-RPC root"))
	}
	if c.ReadHeaderTimeout < 0 {
		errs = append(errs, errors.New("server.read-header-timeout must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("server configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (c *Emulator) Validate() error {
	var errs []error

	if c.ProxyAddress == "" {
		errs = append(errs, errors.New("emulator.proxy-address is required"))
	} else if !common.IsHexAddress(c.ProxyAddress) {
		errs = append(errs, fmt.Errorf("emulator.proxy-address is not a valid address: %q", c.ProxyAddress))
	} else if common.HexToAddress(c.ProxyAddress) == (common.Address{}) {
		errs = append(errs, errors.New("emulator.proxy-address must not be the zero address"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("emulator configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// ProxyAddressValue assumes Validate has passed.
func (c *Emulator) ProxyAddressValue() common.Address {
	return common.HexToAddress(c.ProxyAddress)
}

func (c *Cache) Validate() error {
	var errs []error

	if c.Size < 0 {
		errs = append(errs, errors.New("cache.size must not be negative"))
	}
	if c.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cache configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}
