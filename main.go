package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/overmindtech/doinspect/cmd"
)

func main() {
	cmd.Execute()
}
