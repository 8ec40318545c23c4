package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	pyroscope "github.com/grafana/pyroscope-go"
	"main/internal/exchange"
	"main/internal/journal"
	"main/internal/ops"
	"main/internal/runner"
	"main/internal/session"
	"main/pkg/conn"
	"main/pkg/shm"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	venue := flag.String("venue", "binance", "Venue to forward to (binance or bybit)")
	channel := flag.String("channel", "", "Request channel name (default: <venue>_order)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spec := ops.RunnerSpec{
		Venue:         strings.ToLower(*venue),
		Channel:       *channel,
		Category:      "linear",
		RecvWindow:    5000,
		SubmitTimeout: session.DefaultSubmitTimeout,
		PollInterval:  runner.DefaultPollInterval,
	}
	var journalCfg ops.JournalConfig
	if *configPath != "" {
		loaded, err := ops.Load(*configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		spec = loaded.Runner
		journalCfg = loaded.Journal
		if loaded.Profiling.Enabled {
			profiler, err := pyroscope.Start(pyroscope.Config{
				ApplicationName: "runner." + spec.Venue,
				ServerAddress:   loaded.Profiling.ServerAddress,
				ProfileTypes: []pyroscope.ProfileType{
					pyroscope.ProfileCPU,
					pyroscope.ProfileAllocObjects,
					pyroscope.ProfileAllocSpace,
					pyroscope.ProfileInuseObjects,
					pyroscope.ProfileInuseSpace,
				},
			})
			if err != nil {
				log.Fatalf("pyroscope start failed: %v", err)
			}
			defer func() {
				_ = profiler.Stop()
			}()
		}
	}
	if spec.Channel == "" {
		spec.Channel = ops.RequestChannelName(spec.Venue)
	}

	scheme, err := buildScheme(spec)
	if err != nil {
		log.Fatalf("%v", err)
	}

	creds, err := exchange.CredentialsFromEnv(strings.ToUpper(spec.Venue))
	if err != nil {
		log.Fatalf("credentials missing: %v", err)
	}

	sess, err := session.New(session.Config{
		Scheme:      scheme,
		Credentials: creds,
		Timeout:     spec.SubmitTimeout,
	})
	if err != nil {
		log.Fatalf("build session failed: %v", err)
	}
	if err := sess.Connect(ctx); err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer sess.Close()

	ch, err := shm.Create(spec.Channel)
	if err != nil {
		log.Fatalf("create request channel failed: %v", err)
	}
	defer ch.Close()
	defer ch.Unlink()

	var recorder runner.Recorder
	if journalCfg.Enabled {
		client, err := conn.New(conn.Option{
			Host:     journalCfg.Host,
			Port:     journalCfg.Port,
			User:     journalCfg.User,
			Password: journalCfg.Password,
			Database: journalCfg.Database,
		})
		if err != nil {
			log.Fatalf("connect journal database failed: %v", err)
		}
		defer client.Close()
		recorder, err = journal.New(client)
		if err != nil {
			log.Fatalf("migrate journal failed: %v", err)
		}
	}

	r, err := runner.New(runner.Config{
		Channel:      ch,
		Session:      sess,
		PollInterval: spec.PollInterval,
		Journal:      recorder,
	})
	if err != nil {
		log.Fatalf("build runner failed: %v", err)
	}

	log.Printf("forwarding %s orders from %s", spec.Venue, ch.Path())
	if err := r.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("runner stopped: %v", err)
	}
}

func buildScheme(spec ops.RunnerSpec) (exchange.Scheme, error) {
	switch spec.Venue {
	case "binance":
		return exchange.Binance{RecvWindow: spec.RecvWindow}, nil
	case "bybit":
		recvWindow := ""
		if spec.RecvWindow > 0 {
			recvWindow = strconv.Itoa(spec.RecvWindow)
		}
		return exchange.Bybit{Category: spec.Category, RecvWindow: recvWindow}, nil
	default:
		return nil, fmt.Errorf("unknown venue: %s", spec.Venue)
	}
}
