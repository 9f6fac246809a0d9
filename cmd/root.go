package cmd

import (
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/switchbee-go/internal/pkg/logging"
)

var _rootOpts struct {
	cfgFile string
	debug   bool
}

var rootCmd = &cobra.Command{
	Use:   "switchbee",
	Short: "SwitchBee Central Unit client",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _rootOpts.debug {
			logrus.SetLevel(logrus.DebugLevel)
		}

		return logging.Configure(viper.GetViper())
	},
}

// Execute runs the top level command processor
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logging.Logger(nil).WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&_rootOpts.cfgFile, "config", "", "config file (default is $HOME/.switchbee.yaml)")
	rootCmd.PersistentFlags().BoolVar(&_rootOpts.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("host", "", "Central Unit address")
	rootCmd.PersistentFlags().String("username", "", "Central Unit account user")
	rootCmd.PersistentFlags().String("password", "", "Central Unit account password")

	errPanic(viper.GetViper().BindPFlag("central-unit.host", rootCmd.PersistentFlags().Lookup("host")))
	errPanic(viper.GetViper().BindPFlag("central-unit.username", rootCmd.PersistentFlags().Lookup("username")))
	errPanic(viper.GetViper().BindPFlag("central-unit.password", rootCmd.PersistentFlags().Lookup("password")))
}

func initConfig() {
	if _rootOpts.cfgFile != "" {
		viper.SetConfigFile(_rootOpts.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			logging.Logger(nil).WithError(err).Error("finding home directory")
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".switchbee")
	}

	viper.SetEnvPrefix("switchbee")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logging.Logger(nil).Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func checkRequiredFlags(needFlags ...string) error {
	missingFlags := []string{}

	for _, f := range needFlags {
		if !viper.IsSet(f) || viper.GetString(f) == "" {
			missingFlags = append(missingFlags, f)
		}
	}

	if len(missingFlags) > 0 {
		itemPlural := "item"
		if len(missingFlags) > 1 {
			itemPlural = "items"
		}
		return fmt.Errorf("required config %s `%s` not set", itemPlural, strings.Join(missingFlags, "`, `"))
	}

	return nil
}
