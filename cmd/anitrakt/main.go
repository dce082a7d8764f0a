package main

import "github.com/mydehq/anitrakt/internal/cli"

func main() {
	cli.Execute()
}
