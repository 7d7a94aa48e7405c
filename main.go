package main

import "github.com/silo-network/silo/cmd"

func main() {
	cmd.Execute()
}
