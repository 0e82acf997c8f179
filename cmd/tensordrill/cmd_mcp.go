package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/tensordrill/internal/mcp"
)

func cmdMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	httpAddr := fs.String("http", "", "serve MCP over HTTP on this address instead of stdio")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	server := mcp.NewServer(mcp.Config{
		Pipeline: s.pipeline,
		Registry: s.registry,
		Queue:    s.queue,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *httpAddr != "" {
		if err := server.ServeHTTP(ctx, *httpAddr); err != nil {
			return fmt.Errorf("serve mcp http: %w", err)
		}
		return nil
	}
	return server.ServeStdio(ctx)
}
