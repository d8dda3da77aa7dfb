// Package config loads acpctl's runtime configuration: the policy rules
// an embedded client uses to auto-resolve permission requests, and basic
// logging/connection knobs. A YAML file found on a search path,
// overridable by ACPCTL_-prefixed env vars.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/corebridge/acp/policy"
	"github.com/corebridge/acp/schema"
)

// Config is acpctl's top-level configuration.
type Config struct {
	// LogLevel is one of debug/info/warn/error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// MaxMessageBytes caps a single JSON-RPC line; 0 means the core's default.
	MaxMessageBytes int `yaml:"max_message_bytes" mapstructure:"max_message_bytes"`
	// Policies are CEL rules evaluated against inbound
	// session/request_permission calls before falling back to stdin prompts.
	Policies []PolicyRuleConfig `yaml:"policies" mapstructure:"policies"`
}

// PolicyRuleConfig is the YAML shape of a policy.Rule.
type PolicyRuleConfig struct {
	Name       string `yaml:"name" mapstructure:"name"`
	Expression string `yaml:"expression" mapstructure:"expression"`
	SelectKind string `yaml:"select_kind" mapstructure:"select_kind"`
}

// Rules converts the configured policy rules into policy.Rule values.
func (c Config) Rules() []policy.Rule {
	rules := make([]policy.Rule, 0, len(c.Policies))
	for _, r := range c.Policies {
		rules = append(rules, policy.Rule{
			Name:       r.Name,
			Expression: r.Expression,
			SelectKind: schema.PermissionOptionKind(r.SelectKind),
		})
	}
	return rules
}

// InitViper wires up the search path and environment prefix. configFile, if
// non-empty, is used verbatim; otherwise viper searches the working
// directory, $HOME/.acpctl, and /etc/acpctl for acpctl.yaml.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("acpctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.acpctl")
		viper.AddConfigPath("/etc/acpctl")
	}

	viper.SetEnvPrefix("ACPCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("log_level", "info")
	viper.SetDefault("max_message_bytes", 0)
}

// Load reads the configuration viper was pointed at by InitViper. A missing
// config file is not an error — acpctl runs fine with defaults and env vars
// alone. Search-path misses surface as ConfigFileNotFoundError; an explicit
// --config path that doesn't exist surfaces as a bare *fs.PathError.
func Load() (Config, error) {
	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
