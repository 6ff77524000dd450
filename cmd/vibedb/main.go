package main

import "vibedb/cmd/vibedb/cmd"

func main() {
	cmd.Execute()
}
