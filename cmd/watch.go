package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/switchbee-go/internal/pkg/cuapi"
	"github.com/jake-scott/switchbee-go/internal/pkg/logging"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live device updates from the Central Unit",

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("central-unit.host", "central-unit.username", "central-unit.password")
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doWatch()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func doWatch() error {
	client := cuapi.NewWsRPCClient(
		viper.GetString("central-unit.host"),
		viper.GetString("central-unit.username"),
		viper.GetString("central-unit.password"),
	)

	client.SubscribeUpdates(func(n cuapi.Notification) {
		id := 0
		if n.Data.ID != nil {
			id = *n.Data.ID
		}
		fmt.Printf("%s  %d %s -> %s\n", n.Type, id, n.Data.Name, n.Data.NewValue)
	})

	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Close()

	logging.Logger(nil).Infof("Watching %s, interrupt to stop", client.Name())

	// Run until we get a signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	return nil
}
