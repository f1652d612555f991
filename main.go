package main

import "eve-industry/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
