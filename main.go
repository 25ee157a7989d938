package main

import "github.com/Craigmuzza/PVPStore-sub000/internal/cli"

func main() {
	cli.Execute()
}
