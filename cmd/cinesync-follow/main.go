package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cinesync/cinesync/internal/ai"
	"github.com/cinesync/cinesync/internal/playback"
	"github.com/cinesync/cinesync/internal/playerstate"
	"github.com/cinesync/cinesync/internal/reactions"
	"github.com/cinesync/cinesync/internal/syncchannel"
)

func main() {
	baseURL := getEnv("CINESYNC_URL", "http://localhost:8080")
	partyID := os.Getenv("CINESYNC_PARTY")
	if partyID == "" {
		log.Fatal("CINESYNC_PARTY is required")
	}
	hostToken := os.Getenv("CINESYNC_HOST_TOKEN")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := syncchannel.NewRemoteStore(baseURL, hostToken)
	store.SetPasscode(os.Getenv("CINESYNC_PASSCODE"))
	defer func() { _ = store.Close() }()

	channel := syncchannel.New(store)
	defer channel.Close()

	role := playback.RoleViewer
	if hostToken != "" {
		role = playback.RoleHost
	}

	bus := reactions.NewBus()
	element := playback.NewHeadlessElement(nil)
	f := &follower{element: element, bus: bus, out: os.Stdout}

	f.overlay = reactions.NewOverlay(bus, f.renderOverlay)
	defer f.overlay.Close()
	bus.Listen(reactions.KindDiscussion, f.printDiscussion)

	cfg := playback.Config{
		Role:        role,
		Element:     element,
		Channel:     channel,
		Discussions: bus,
	}
	if getEnv("AI_ENABLED", "false") == "true" {
		cfg.Starter = ai.NewClient(
			os.Getenv("AI_BASE_URL"),
			os.Getenv("AI_API_KEY"),
			getEnv("AI_MODEL", "mistral-small-latest"),
			"",
		)
	}
	f.ctrl = playback.New(cfg)
	defer f.ctrl.Close()

	channel.Subscribe(func(s playerstate.PlayerState) { f.printState(s) })

	if err := channel.Initialize(partyID); err != nil {
		log.Fatalf("join party failed: %v", err)
	}
	log.Printf("following party %s as %s", partyID, role)

	go f.readCommands(os.Stdin)
	f.run(ctx)
	log.Println("left party")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
