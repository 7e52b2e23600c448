package main

import "github.com/nholden/verso/cli"

func main() {
	cli.Execute()
}
