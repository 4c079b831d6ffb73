package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/hearthchat/hearth/internal/adapters/http"
	"github.com/hearthchat/hearth/internal/adapters/rtc"
	"github.com/hearthchat/hearth/internal/audio"
	"github.com/hearthchat/hearth/internal/backend"
	"github.com/hearthchat/hearth/internal/config"
	"github.com/hearthchat/hearth/internal/core"
	"github.com/hearthchat/hearth/internal/domain"
	"github.com/hearthchat/hearth/internal/events"
	"github.com/hearthchat/hearth/internal/gossip"
	"github.com/hearthchat/hearth/internal/voice"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	cmd := staticBackend(cfg)
	bus := events.NewBus()
	syncer := gossip.NewSync(cmd, bus)

	mgr := voice.NewManager(voice.Options{
		SignalingURL:   cfg.SignalingURL,
		ReconnectDelay: cfg.ReconnectDelay,
		AnnouncePeriod: cfg.AnnouncePeriod,
		AudioCfg: audio.Config{
			SampleRate:    cfg.Audio.SampleRate,
			Channels:      cfg.Audio.Channels,
			Gain:          cfg.Audio.Gain,
			GateThreshold: cfg.Audio.GateThreshold,
		},
		OpenCapture: func(ctx context.Context) (audio.CaptureSource, error) {
			return audio.NewSilenceSource(cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.FrameDuration), nil
		},
		Output: func() audio.OutputDevice { return nil },
		MediaFactory: func(peer domain.PeerID) (core.MediaConnection, error) {
			return rtc.NewConnection(rtc.ConfigWithSTUN(cfg.StunServers), peer)
		},
	}, cmd, syncer, bus)

	go logEvents(ctx, bus)

	if cfg.StatusAddr != "" {
		srv := &http.Server{Addr: cfg.StatusAddr, Handler: router.SetupRouter(mgr, syncer)}
		go func() {
			log.Info().Str("addr", cfg.StatusAddr).Msg("status API started")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("status API error")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Join.RoomID != "" {
		sess, err := mgr.JoinVoice(ctx, domain.RoomID(cfg.Join.RoomID), domain.ServerID(cfg.Join.ServerID))
		if err != nil {
			log.Fatal().Err(err).Msg("join voice failed")
		}
		log.Info().Str("room", string(sess.RoomID)).Str("peer", string(sess.PeerID)).Msg("in voice")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	mgr.LeaveVoice()
	log.Info().Msg("exited gracefully")
}

func staticBackend(cfg *config.Config) backend.Commander {
	servers := make([]domain.Server, 0, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		sv := domain.Server{
			ID:         domain.ServerID(sc.ID),
			SigningKey: domain.SigningKey(sc.SigningKey),
			Name:       sc.Name,
		}
		for _, rc := range sc.Rooms {
			sv.Rooms = append(sv.Rooms, domain.Room{
				ID:       domain.RoomID(rc.ID),
				ServerID: sv.ID,
				Name:     rc.Name,
			})
		}
		for _, member := range sc.Members {
			sv.Members = append(sv.Members, domain.UserID(member))
		}
		servers = append(servers, sv)
	}
	ident := domain.Identity{
		UserID:      domain.UserID(cfg.Identity.UserID),
		DisplayName: cfg.Identity.DisplayName,
	}
	return backend.NewStatic(ident, servers)
}

func logEvents(ctx context.Context, bus *events.Bus) {
	ch, cancel := bus.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			switch ev := e.(type) {
			case events.PeerStateChanged:
				log.Info().Str("peer", string(ev.PeerID)).Str("user", string(ev.UserID)).
					Str("state", ev.State.String()).Msg("peer state")
			case events.ProfileUpdated:
				log.Info().Str("user", string(ev.UserID)).Msg("profile updated")
			case events.RoomsUpdated:
				log.Info().Msg("rooms updated")
			case events.RoomRemoved:
				log.Info().Str("key", string(ev.Key)).Msg("room removed")
			}
		}
	}
}
