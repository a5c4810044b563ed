package main

import "github.com/nfrund/eventsys/cmd/eventsys-cli/cmd"

func main() {
	cmd.Execute()
}
