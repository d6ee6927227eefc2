package main

import (
	"context"
	"os"

	"github.com/jlrickert/repodex/pkg/cli"
)

func main() {
	ctx := context.Background()

	code, _ := cli.Run(ctx, os.Args[1:])
	os.Exit(code)
}
