package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/adraglia/smashparty/backend/game"
	"github.com/adraglia/smashparty/backend/hub"
	"github.com/adraglia/smashparty/backend/media"
	httpServer "github.com/adraglia/smashparty/backend/server/http"
	websocketServer "github.com/adraglia/smashparty/backend/server/websocket"
	"github.com/adraglia/smashparty/backend/service"
	store "github.com/adraglia/smashparty/backend/storage/memory"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", ":8888", "websocket game listen address")
		logLevel      = fs.StringP("log-level", "l", "debug", "log level")
		uploadsDir    = fs.StringP("uploads-dir", "u", "uploads", "directory for uploaded images")
		staticDir     = fs.StringP("static-dir", "s", "public", "directory with static client assets")
		settleDelay   = fs.DurationP("settle-delay", "d", 3*time.Second, "pause between round result and next round")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	mediaStore, err := media.NewDiskStore(*uploadsDir, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare uploads directory")
	}

	eventHub := hub.NewHub(&logger)
	clock := clockwork.NewRealClock()
	directory := store.NewDirectory(store.Config{
		Logger: &logger,
		NewRoom: func(id string, onRetire func(string)) *game.Room {
			return game.NewRoom(game.Config{
				ID:          id,
				Logger:      &logger,
				Clock:       clock,
				Sink:        eventHub,
				SettleDelay: *settleDelay,
				OnRetire:    onRetire,
			})
		},
	})

	svc := service.NewService(service.Config{
		Directory: directory,
		Hub:       eventHub,
		Logger:    &logger,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:      &logger,
		RoomCreator: svc,
		MediaStore:  mediaStore,
		StaticDir:   *staticDir,
		ListenAddr:  *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:      &logger,
		GameService: svc,
		ListenAddr:  *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
