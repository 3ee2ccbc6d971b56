package main

import "eventsphere/cmd"

func main() {
	cmd.Execute()
}
