package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"main/internal/display"
	"main/internal/feed"
	"main/internal/model"
	"main/internal/ops"
	"main/pkg/shm"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to stream")
	depth := flag.Int("depth", 10, "Book depth (5, 10 or 20)")
	channel := flag.String("channel", "", "Snapshot channel name (default: orderbook_<exchange>_<symbol>_<depth>)")
	show := flag.Bool("display", false, "Render the book in the terminal")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spec := ops.FeedSpec{
		Exchange: "binance",
		Symbol:   strings.ToUpper(*symbol),
		Depth:    *depth,
		Channel:  *channel,
		Display:  *show,
	}
	if *configPath != "" {
		loaded, err := ops.Load(*configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		spec = loaded.Feed
	}
	if spec.Channel == "" {
		spec.Channel = ops.SnapshotChannelName(spec.Exchange, spec.Symbol, spec.Depth)
	}

	ch, err := shm.Create(spec.Channel)
	if err != nil {
		log.Fatalf("create snapshot channel failed: %v", err)
	}
	defer ch.Close()
	defer ch.Unlink()

	var onSnapshot func(model.Snapshot)
	if spec.Display {
		onSnapshot = func(snap model.Snapshot) {
			display.Clear(os.Stdout)
			display.Render(os.Stdout, snap, spec.Depth, spec.Symbol)
		}
	}
	producer := feed.NewProducer(ch, onSnapshot)

	book := feed.NewBinanceBook(ctx)
	defer book.Close()
	if err := book.StartWebsocket(ctx); err != nil {
		log.Fatalf("start websocket failed: %v", err)
	}
	if err := book.SubscribeBookDepth(ctx, spec.Symbol, spec.Depth); err != nil {
		log.Fatalf("subscribe book depth failed: %v", err)
	}

	unsubscribe := book.ObserveBookDepth(ctx, producer.Handler())
	defer unsubscribe()

	log.Printf("publishing %s depth %d snapshots to %s", spec.Symbol, spec.Depth, ch.Path())
	<-ctx.Done()
}
