// Package config bootstraps the process-wide Viper instance: config search
// paths, the HEIRFINDER_ environment prefix and the optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	internalcfg "github.com/JakeFAU/heir-finder/internal/config"
)

// InitConfig prepares v for loading. An explicit cfgFile must exist; without
// one, "config.yaml" is searched in the working directory, /etc/heirfinder
// and $HOME/.heirfinder, and a missing file is not an error. It returns the
// path of the file used, or "".
func InitConfig(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/heirfinder/")
		v.AddConfigPath("$HOME/.heirfinder")
	}

	v.SetEnvPrefix(internalcfg.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	internalcfg.SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}
