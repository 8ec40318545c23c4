package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"main/internal/strategy"
	"main/pkg/shm"
)

func main() {
	bookA := flag.String("book-a", "", "Snapshot channel for venue A")
	bookB := flag.String("book-b", "", "Snapshot channel for venue B")
	buy := flag.String("buy", "binance_order", "Request channel for the BUY leg")
	sell := flag.String("sell", "bybit_order", "Request channel for the SELL leg")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to trade")
	quantity := flag.String("qty", "0.001", "Order quantity")
	interval := flag.Duration("interval", 50*time.Millisecond, "Poll interval")
	flag.Parse()

	if *bookA == "" || *bookB == "" {
		log.Fatal("both -book-a and -book-b are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chBookA := attach(*bookA)
	defer chBookA.Close()
	chBookB := attach(*bookB)
	defer chBookB.Close()
	chBuy := attach(*buy)
	defer chBuy.Close()
	chSell := attach(*sell)
	defer chSell.Close()

	s, err := strategy.NewSpread(strategy.SpreadConfig{
		BookA:        chBookA,
		BookB:        chBookB,
		BuyRequests:  chBuy,
		SellRequests: chSell,
		Symbol:       strings.ToUpper(*symbol),
		Quantity:     *quantity,
		PollInterval: *interval,
	})
	if err != nil {
		log.Fatalf("build strategy failed: %v", err)
	}

	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("strategy stopped: %v", err)
	}
}

func attach(name string) *shm.Channel {
	ch, err := shm.Attach(name)
	if err != nil {
		log.Fatalf("attach channel %s failed: %v", name, err)
	}
	return ch
}
