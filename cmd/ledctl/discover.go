//go:build !tinygo

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	bridgeService = "_elektra._tcp"
	bridgeDomain  = "local."
)

// discoverBridge browses mDNS for a controller bridge and returns the first
// address found.
func discoverBridge(ctx context.Context, timeout time.Duration) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("mdns resolver: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, bridgeService, bridgeDomain, entries); err != nil {
		return "", fmt.Errorf("mdns browse: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return "", errors.New("no controller bridge found over mdns")
		case e, ok := <-entries:
			if !ok {
				return "", errors.New("no controller bridge found over mdns")
			}
			if addr := entryAddr(e); addr != "" {
				return addr, nil
			}
		}
	}
}

func entryAddr(e *zeroconf.ServiceEntry) string {
	if e == nil || e.Port == 0 {
		return ""
	}
	port := strconv.Itoa(e.Port)
	if len(e.AddrIPv4) > 0 {
		return net.JoinHostPort(e.AddrIPv4[0].String(), port)
	}
	if len(e.AddrIPv6) > 0 {
		return net.JoinHostPort(e.AddrIPv6[0].String(), port)
	}
	return ""
}
