package main

import "github.com/relayworks/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
