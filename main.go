package main

import "github.com/contextos/ctxos/cli"

func main() {
	cli.Execute()
}
