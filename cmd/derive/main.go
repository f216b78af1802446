package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/derive/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "derive:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
