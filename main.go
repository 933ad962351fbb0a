package main

import "github.com/illarion/notelock/cmd"

func main() {
	cmd.Execute()
}
