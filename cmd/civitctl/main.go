package main

import (
	"fmt"
	"os"

	"civitaid/internal/civitctl"
)

func main() {
	if err := civitctl.BuildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
