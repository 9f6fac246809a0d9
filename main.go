package main

import "github.com/jake-scott/switchbee-go/cmd"

func main() {
	cmd.Execute()
}
