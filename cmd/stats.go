package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/switchbee-go/internal/pkg/cuapi"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display the Central Unit's diagnostic counters",

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("central-unit.host", "central-unit.username", "central-unit.password")
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doStats()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func doStats() error {
	client := cuapi.NewPollingClient(
		viper.GetString("central-unit.host"),
		viper.GetString("central-unit.username"),
		viper.GetString("central-unit.password"),
	)

	env, err := client.GetStats()
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, env.Data, "", "    "); err != nil {
		return err
	}

	fmt.Println(pretty.String())
	return nil
}
