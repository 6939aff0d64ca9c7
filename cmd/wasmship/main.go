// Command wasmship is the client for the wasmship daemon.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/wasmship/wasmship"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(wasmship.VersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
