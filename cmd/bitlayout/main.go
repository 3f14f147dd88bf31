package main

import "github.com/wader/bitlayout/internal/cli"

func main() {
	cli.Execute()
}
