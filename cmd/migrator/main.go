package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/cmd/migrator/commands"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/console"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cli := commands.New(os.Stdout, os.Stderr)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		console.Default().Secho("Error: "+err.Error(), console.Red)
		os.Exit(1)
	}
}
