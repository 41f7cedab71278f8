package main

import "github.com/oxide-lab/discover/cmd"

func main() {
	cmd.Execute()
}
