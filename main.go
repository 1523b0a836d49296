package main

import "loom/cmd"

// Version can be set during build with -ldflags
var Version = "dev"

func main() {
	cmd.SetVersion(Version)
	cmd.Execute()
}
