package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	gamedcmd "github.com/louisbranch/spinout/internal/cmd/gamed"
	"github.com/louisbranch/spinout/internal/platform/config"
)

func main() {
	cfg, err := gamedcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[GAMED] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gamedcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}
