package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAwaitShutdown_FatalStopsServices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A stand-in service that only exits on cancellation, like the real
	// processor/engine/finder loops.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
	}()

	fatal := make(chan error, 1)
	fatal <- errors.New("connection exhausted after 5 reconnect-all attempts")

	done := make(chan error, 1)
	go func() {
		done <- awaitShutdown(ctx, cancel, fatal, &wg)
	}()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "stream connection exhausted") {
			t.Errorf("got %v, want wrapped stream fatal error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fatal stream error did not stop the services")
	}
}

func TestAwaitShutdown_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
	}()

	go cancel()

	err := awaitShutdown(ctx, cancel, make(chan error), &wg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestLoadWallets(t *testing.T) {
	wallets, err := loadWallets("w1, w2,,w1", "")
	if err != nil {
		t.Fatalf("loadWallets failed: %v", err)
	}
	if len(wallets) != 2 || wallets[0] != "w1" || wallets[1] != "w2" {
		t.Errorf("got %v, want [w1 w2]", wallets)
	}
}
