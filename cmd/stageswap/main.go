package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/vvka-141/stageswap/internal/cli"
	"github.com/vvka-141/stageswap/pkg/stageswap"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(stageswap.ExitPanic)
		}
	}()

	if err := cli.Execute(); err != nil {
		os.Exit(stageswap.ExitCodeForError(err))
	}
}
