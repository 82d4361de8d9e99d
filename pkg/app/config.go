package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFlagName = "config"

var cfgFile string

// addConfigFlag registers --config and sets up viper defaults for the binary:
// config is searched in the working directory and ~/.<basename>/ when the
// flag is not given, and environment variables prefixed with the upper-cased
// basename (LOREKEEPER_ for the server) override file values.
func addConfigFlag(basename string, fs *pflag.FlagSet) {
	fs.StringVarP(&cfgFile, configFlagName, "c", "",
		"Path to the configuration file (yaml).")

	viper.SetEnvPrefix(strings.ReplaceAll(strings.ToUpper(basename), "-", "_"))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, "."+basename))
		}
		viper.SetConfigName(basename)
	}
}

// bindConfig reads the config file (if any) and binds it to the flag set so
// that file values act as flag defaults.
func bindConfig(fs *pflag.FlagSet) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return fmt.Errorf("read config file %q: %w", cfgFile, err)
		}
		// No config file found in the default locations is fine.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Name == configFlagName {
			return
		}
		if !f.Changed && viper.IsSet(f.Name) {
			if err := fs.Set(f.Name, viper.GetString(f.Name)); err != nil {
				bindErr = fmt.Errorf("apply config value for --%s: %w", f.Name, err)
			}
		}
	})
	return bindErr
}
