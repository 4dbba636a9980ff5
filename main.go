package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"liftsim/building"
	"liftsim/config"
	"liftsim/logger"
	"liftsim/panel"
	"liftsim/rider"
	"liftsim/timer"
)

func main() {
	configPath := flag.String("config", "liftsim.yaml", "path to the configuration file")
	servePanel := flag.Bool("panel", false, "serve the remote call panel")
	interactive := flag.Bool("interactive", false, "spawn riders from the keyboard instead of the script")
	flag.Parse()

	// A .env file feeds the same LIFTSIM_* variables the environment can set.
	if env, err := godotenv.Read(".env"); err == nil {
		for k, v := range env {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("bad configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.GetLoggerConfigured(level).With().Str("component", "main").Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	alarm := timer.NewAlarm(time.Duration(cfg.TickMs) * time.Millisecond)
	b := building.New("liftsim", cfg.Floors, cfg.Cars, cfg.Capacity, alarm)

	var wg sync.WaitGroup
	b.Start(ctx, &wg)
	go logEvents(b, logger.Component("events"))

	if *servePanel {
		addr := cfg.PanelAddr
		if addr == "" {
			addr = "127.0.0.1:14280"
		}
		go func() {
			if err := panel.NewServer(b).ListenAndServe(ctx, addr); err != nil {
				log.Error().Err(err).Msg("panel stopped")
			}
		}()
	}

	log.Info().
		Int("floors", cfg.Floors).
		Int("cars", cfg.Cars).
		Int("capacity", cfg.Capacity).
		Msg("building in service")

	switch {
	case *interactive:
		runInteractive(cancel, b, cfg, log)
	case len(cfg.Riders) > 0:
		if err := rider.RunScript(b, cfg.Riders); err != nil {
			log.Error().Err(err).Msg("scripted riders failed")
		}
		log.Info().Int("riders", len(cfg.Riders)).Msg("script finished")
		if !*servePanel {
			cancel()
		}
	}

	<-ctx.Done()
	wg.Wait()
	log.Info().Msg("building closed")
}

// logEvents mirrors the engine's event stream into the log.
func logEvents(b *building.Building, log zerolog.Logger) {
	for ev := range b.Events() {
		entry := log.Info().Str("event", ev.Kind.String()).Int("floor", ev.Floor)
		if ev.Car >= 0 {
			entry = entry.Int("car", ev.Car)
		}
		if ev.Rider != "" {
			entry = entry.Str("rider", ev.Rider)
		}
		entry.Send()
	}
}

// runInteractive spawns a rider at the pressed digit's floor with a random
// destination. q or ctrl-c quits.
func runInteractive(cancel context.CancelFunc, b *building.Building, cfg config.Config, log zerolog.Logger) {
	log.Info().Msgf("press a floor digit 1..%d to spawn a rider there, q to quit", cfg.Floors)
	var journeys sync.WaitGroup
	defer journeys.Wait()
	for {
		char, key, err := keyboard.GetSingleKey()
		if err != nil {
			log.Error().Err(err).Msg("keyboard unavailable")
			cancel()
			return
		}
		if char == 'q' || key == keyboard.KeyCtrlC {
			cancel()
			return
		}
		from := int(char - '0')
		if from < 1 || from > cfg.Floors {
			continue
		}
		to := 1 + rand.Intn(cfg.Floors-1)
		if to >= from {
			to++
		}
		journeys.Add(1)
		go func() {
			defer journeys.Done()
			if _, err := rider.New(b, "").Ride(from, to); err != nil {
				log.Error().Err(err).Msg("journey failed")
			}
		}()
	}
}
