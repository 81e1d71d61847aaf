package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"streamgate/internal/app"
)

func main() {
	a := app.New()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			os.Exit(1)
		}
	case <-sigCh:
		if err := a.Shutdown(context.Background()); err != nil {
			os.Exit(1)
		}
	}
}
