// Headless call client: joins a room through the signaling relay, runs the
// full handshake with sample media tracks, and bridges stdin to room chat.
// Useful for exercising a relay deployment without a browser on either end.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v3"

	"github.com/avelin/quickmeet/internal/client"
	"github.com/avelin/quickmeet/internal/config"
	"github.com/avelin/quickmeet/internal/domain"
	"github.com/avelin/quickmeet/lib/logger/sl"
)

func main() {
	_ = godotenv.Load(".env")

	url := flag.String("url", "ws://localhost:8080/ws", "relay websocket url")
	room := flag.String("room", "", "room code to join")
	userID := flag.String("user", "", "user id (defaults to a fresh uuid)")
	name := flag.String("name", "guest", "display name for chat")

	cfg := config.MustLoad()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if *room == "" {
		log.Error("-room is required")
		os.Exit(1)
	}
	if *userID == "" {
		*userID = uuid.New().String()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sig, err := client.DialSignaler(ctx, *url)
	if err != nil {
		log.Error("failed to dial relay", sl.Err(err))
		os.Exit(1)
	}
	defer sig.Close()

	orch, err := client.NewOrchestrator(client.Options{
		RoomID:      *room,
		UserID:      *userID,
		DisplayName: *name,
		Signaler:    sig,
		NewPeerConn: client.NewPionFactory(client.STUNConfig(cfg.WebRTC.STUNServers)),
		Media:       client.NewSampleMedia(),
		MediaWait:   cfg.Media.WaitTimeout,
		Logger:      log,
		OnPhaseChange: func(p client.Phase) {
			log.Info("call phase", "phase", p.String())
		},
		OnChat: func(msg domain.ChatMessage) {
			log.Info("chat", "from", msg.From, "text", msg.Text)
		},
		OnRemoteTrack: func(track *webrtc.TrackRemote) {
			log.Info("remote track", "kind", track.Kind().String())
		},
		OnError: func(err error) {
			log.Warn("call error", sl.Err(err))
		},
	})
	if err != nil {
		log.Error("failed to build call session", sl.Err(err))
		os.Exit(1)
	}

	go readChat(orch, log)

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("call session failed", sl.Err(err))
		os.Exit(1)
	}
	log.Info("call session ended")
}

func readChat(orch *client.Orchestrator, log *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		if err := orch.SendChat(text); err != nil {
			log.Warn("chat not sent", sl.Err(err))
		}
	}
	orch.EndCall()
}
