package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/switchbee-go/internal/pkg/cuapi"
	"github.com/jake-scott/switchbee-go/internal/pkg/device"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices configured on the Central Unit",

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("central-unit.host", "central-unit.username", "central-unit.password")
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doDevices()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func doDevices() error {
	client := cuapi.NewPollingClient(
		viper.GetString("central-unit.host"),
		viper.GetString("central-unit.username"),
		viper.GetString("central-unit.password"),
	)

	if err := client.Connect(); err != nil {
		return err
	}

	fmt.Printf("%s  (firmware %s, mac %s)\n\n", client.Name(), client.Version(), client.Mac())

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tZONE\tNAME\tTYPE\tMODULE\tSTATE")

	for _, dev := range client.Devices() {
		base := dev.Base()
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			base.ID, base.Zone, base.Name, base.Type.Display(),
			client.ModuleDisplay(base.UnitID()), deviceState(dev))
	}

	return w.Flush()
}

func deviceState(dev device.Device) string {
	switch d := dev.(type) {
	case *device.Switch:
		return d.State
	case *device.GroupSwitch:
		return d.State
	case *device.TimedSwitch:
		return d.State
	case *device.TwoWay:
		return d.State
	case *device.Dimmer:
		return fmt.Sprintf("%d%%", d.Brightness)
	case *device.Shutter:
		return fmt.Sprintf("%d%%", d.Position)
	case *device.TimedPowerSwitch:
		if d.State == device.StateOn {
			return fmt.Sprintf("%s (%d min left)", d.State, d.MinutesLeft)
		}
		return d.State
	case *device.Thermostat:
		return fmt.Sprintf("%s %s %d°", d.State, d.Mode, d.TargetTemperature)
	}
	return "-"
}
