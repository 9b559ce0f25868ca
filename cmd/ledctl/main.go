//go:build !tinygo

// Command ledctl controls an Elektra strip controller through its HID bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"
)

func main() {
	var (
		addr     string
		discover bool
		timeout  time.Duration
	)
	flag.StringVar(&addr, "addr", "127.0.0.1:7750", "HID bridge address.")
	flag.BoolVar(&discover, "discover", false, "Find the bridge over mDNS instead of -addr.")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the bridge and the device.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <command> [args]\n\n%s\n\nflags:\n", os.Args[0], usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, addr, discover, timeout, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string, discover bool, timeout time.Duration, args []string) error {
	if discover {
		found, err := discoverBridge(ctx, timeout)
		if err != nil {
			return err
		}
		addr = found
	}

	c, err := dial(ctx, addr, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := c.waitReady(readyCtx); err != nil {
		return err
	}

	s := &console{c: c, out: os.Stdout}
	if args[0] == "repl" {
		return s.repl(ctx, os.Stdin)
	}
	opCtx, cancelOp := context.WithTimeout(ctx, timeout)
	defer cancelOp()
	return s.run(opCtx, args)
}
