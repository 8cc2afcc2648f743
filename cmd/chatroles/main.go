package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/version"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/app"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/character"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/config"
)

func main() {
	configPath := flag.String("config", "./chatroles.yaml", "path to the YAML configuration file")
	roomID := flag.String("room", "lobby", "room identifier for this session")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	// Configure structured logging.
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	var logHandler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		logHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		logHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	fmt.Printf("ChatRoles Conversation Engine\n")
	fmt.Printf("Version: %s\n", version.Info())
	fmt.Println()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	characters, err := character.LoadRoster(cfg.CharactersPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	engine, err := app.New(cfg, characters, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := engine.WarmUp(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %d characters:\n", len(characters))
	for _, ch := range characters {
		fmt.Printf("  - %s (%s)\n", ch.Name, ch.ID)
	}
	if cfg.DemoMode() {
		fmt.Println("Running in demo mode: all replies are generated offline.")
	}
	fmt.Println("Type a message and press Enter. Ctrl-D or /quit to exit.")
	fmt.Println()

	runChat(ctx, engine, *roomID)
}

// runChat is the interactive read-evaluate-reply loop.
func runChat(ctx context.Context, engine *app.App, roomID string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			return
		}

		replies, err := engine.HandleMessage(ctx, roomID, "用户", text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(replies) == 0 {
			fmt.Println("(no character was interested in that)")
			continue
		}
		for _, r := range replies {
			fmt.Printf("[%s · %.2f · %s] %s\n", r.Name, r.Score, r.Provider, r.Text)
		}
		fmt.Println()
	}
}
