// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"log"
	"os"

	"codeberg.org/oliverandrich/guestgate/internal/config"
	"codeberg.org/oliverandrich/guestgate/internal/server"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:   "guestgate",
		Usage:  "Event check-in service with QR identity tokens and guest notifications",
		Flags:  config.Flags(),
		Action: server.Run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
