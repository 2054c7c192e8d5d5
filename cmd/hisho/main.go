package main

import (
	"fmt"
	"os"

	"github.com/harunoka/hisho/common/version"
	"github.com/harunoka/hisho/internal/hisho/app"
)

func main() {
	fmt.Printf("Hisho Task Bot\n")
	fmt.Printf("Version: %s\n", version.Info())
	fmt.Println()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	hisho, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := hisho.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
