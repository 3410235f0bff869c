package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flashbots/suapp-supplychain/framework"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "SC"
	DefaultFile    = "supplychain.yaml"
	DefaultNetwork = "localhost"

	// First prefunded account of hardhat and anvil dev nodes.
	devAccountPrivKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

var (
	ErrUnknownNetwork = errors.New("selected network is not configured")
	ErrMissingRPC     = errors.New("network has no rpc_url")
	ErrNoAccounts     = errors.New("network has no accounts")
)

type Config struct {
	LogLevel       string        `mapstructure:"log_level"`
	Network        string        `mapstructure:"network"`
	ArtifactsDir   string        `mapstructure:"artifacts_dir"`
	Artifact       string        `mapstructure:"artifact"`
	DBPath         string        `mapstructure:"db_path"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	// PrivateKey, when set, is used as the first account of the selected network.
	PrivateKey string `mapstructure:"private_key"`

	Networks      map[string]Network `mapstructure:"networks"`
	NamedAccounts map[string]int     `mapstructure:"named_accounts"`
	HTTP          HTTP               `mapstructure:"http"`
	Seed          Seed               `mapstructure:"seed"`
}

type Network struct {
	ChainID  uint64   `mapstructure:"chain_id"`
	RPCURL   string   `mapstructure:"rpc_url"`
	WSURL    string   `mapstructure:"ws_url"`
	Accounts []string `mapstructure:"accounts"`
}

type HTTP struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Seed is the product the run command creates and then ships.
type Seed struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Price       string `mapstructure:"price"`
	ShipPrice   string `mapstructure:"ship_price"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "debug")
	v.SetDefault("network", DefaultNetwork)
	v.SetDefault("artifacts_dir", "out")
	v.SetDefault("artifact", "SupplyChain.sol/SupplyChain.json")
	v.SetDefault("db_path", "deployments.db")
	v.SetDefault("confirm_timeout", "2m")
	v.SetDefault("private_key", "")

	v.SetDefault("networks.localhost.chain_id", 31337)
	v.SetDefault("networks.localhost.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("networks.localhost.ws_url", "ws://127.0.0.1:8545")
	v.SetDefault("networks.localhost.accounts", []string{devAccountPrivKeyHex})

	v.SetDefault("named_accounts", map[string]int{"deployer": 0})

	v.SetDefault("http.listen_addr", "localhost:18550")
	v.SetDefault("http.shutdown_timeout", "5s")

	v.SetDefault("seed.name", "Pipsi")
	v.SetDefault("seed.description", "a cold drink")
	v.SetDefault("seed.price", "1000")
	v.SetDefault("seed.ship_price", "1400")
}

// Load reads path (or ./supplychain.yaml when path is empty and the file
// exists) and applies SC_* environment overrides, e.g. SC_NETWORK or
// SC_HTTP_LISTEN_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	n, err := c.SelectedNetwork()
	if err != nil {
		return err
	}
	if n.RPCURL == "" {
		return fmt.Errorf("%w: %s", ErrMissingRPC, c.Network)
	}
	if len(n.Accounts) == 0 && c.PrivateKey == "" {
		return fmt.Errorf("%w: %s", ErrNoAccounts, c.Network)
	}
	return nil
}

func (c *Config) SelectedNetwork() (Network, error) {
	n, ok := c.Networks[c.Network]
	if !ok {
		return Network{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, c.Network)
	}
	return n, nil
}

// NetworkName maps a chain id back to the configured network name.
func (c *Config) NetworkName(chainID uint64) (string, bool) {
	if n, ok := c.Networks[c.Network]; ok && n.ChainID == chainID {
		return c.Network, true
	}
	for name, n := range c.Networks {
		if n.ChainID == chainID {
			return name, true
		}
	}
	return "", false
}

// Keys returns the signers of the selected network.
func (c *Config) Keys() ([]*framework.PrivKey, error) {
	n, err := c.SelectedNetwork()
	if err != nil {
		return nil, err
	}

	hexKeys := n.Accounts
	if c.PrivateKey != "" {
		hexKeys = append([]string{c.PrivateKey}, hexKeys...)
	}

	keys := make([]*framework.PrivKey, 0, len(hexKeys))
	for i, h := range hexKeys {
		k, err := framework.NewPrivKeyFromHex(h)
		if err != nil {
			return nil, fmt.Errorf("account %d of %s: %w", i, c.Network, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (c *Config) FrameworkConfig() (framework.Config, error) {
	n, err := c.SelectedNetwork()
	if err != nil {
		return framework.Config{}, err
	}
	keys, err := c.Keys()
	if err != nil {
		return framework.Config{}, err
	}
	return framework.Config{
		RPCURL:         n.RPCURL,
		ArtifactsDir:   c.ArtifactsDir,
		Accounts:       keys,
		NamedAccounts:  c.NamedAccounts,
		ConfirmTimeout: c.ConfirmTimeout,
	}, nil
}

// Starter is the content written by the init command.
func Starter() map[string]interface{} {
	return map[string]interface{}{
		"log_level":       "debug",
		"network":         DefaultNetwork,
		"artifacts_dir":   "out",
		"artifact":        "SupplyChain.sol/SupplyChain.json",
		"db_path":         "deployments.db",
		"confirm_timeout": "2m",
		"networks": map[string]interface{}{
			DefaultNetwork: map[string]interface{}{
				"chain_id": 31337,
				"rpc_url":  "http://127.0.0.1:8545",
				"ws_url":   "ws://127.0.0.1:8545",
				"accounts": []string{devAccountPrivKeyHex},
			},
			"sepolia": map[string]interface{}{
				"chain_id": 11155111,
				"rpc_url":  "https://rpc.sepolia.org",
				"accounts": []string{},
			},
		},
		"named_accounts": map[string]int{"deployer": 0},
		"http": map[string]interface{}{
			"listen_addr":      "localhost:18550",
			"shutdown_timeout": "5s",
		},
		"seed": map[string]interface{}{
			"name":        "Pipsi",
			"description": "a cold drink",
			"price":       "1000",
			"ship_price":  "1400",
		},
	}
}
