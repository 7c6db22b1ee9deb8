package main

import (
	"fmt"
	"os"

	"github.com/magland/runpack/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	fmt.Printf("coordinator listening on %s\n", a.Cfg.HTTPAddr)
	if err := a.Run(); err != nil {
		a.Log.Warn("server exited", "error", err)
		os.Exit(1)
	}
}
