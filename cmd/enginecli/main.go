package main

import (
	"fmt"
	"os"

	"github.com/aurora-is-near/engine-go/cmd/enginecli/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
