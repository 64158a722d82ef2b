package main

import "github.com/sw33tLie/archerlookup/cmd"

func main() {
	cmd.Execute()
}
