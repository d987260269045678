package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := Instance().RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("sprotoctl failed")
		os.Exit(1)
	}
}
