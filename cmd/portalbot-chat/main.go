// ABOUTME: Interactive chat client for the portal help bot websocket API.
// ABOUTME: Prints confidence bands, sources, suggestion chips, and map summaries.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/skyarc/portalbot/internal/client/chatctl"
	"github.com/skyarc/portalbot/internal/geo"
)

func main() {
	server := flag.String("server", "ws://localhost:8080/ws/chat", "Chat websocket URL")
	timeout := flag.Duration("timeout", 30*time.Second, "Response timeout")
	flag.Parse()

	fmt.Printf("portalbot-chat connecting to %s\n", *server)
	fmt.Println("Type a question and press Enter. /suggest N, /status, /quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *server, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, url string, timeout time.Duration) error {
	printed := 0 // transcript entries already shown

	ctrl := chatctl.New(chatctl.Options{
		URL:             url,
		ResponseTimeout: timeout,
		OnStatus: func(status string) {
			switch status {
			case chatctl.StatusConnected:
				color.Green("[%s]", status)
			case chatctl.StatusConnecting:
				color.Yellow("[%s]", status)
			default:
				color.Red("[%s]", status)
			}
		},
	})
	defer ctrl.Close()

	ctrl.Connect(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	prompt := color.New(color.FgCyan, color.Bold)

	for {
		printed = printNewEntries(ctrl, printed)
		prompt.Print("you> ")

		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/status":
			fmt.Printf("connection: %s, session: %s\n", ctrl.Status(), ctrl.SessionID())
			continue
		case strings.HasPrefix(line, "/suggest"):
			arg := strings.TrimSpace(strings.TrimPrefix(line, "/suggest"))
			n, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("usage: /suggest N")
				continue
			}
			if err := ctrl.UseSuggestion(n - 1); err != nil {
				color.Red("%v", err)
				continue
			}
		default:
			if err := ctrl.Send(line); err != nil {
				color.Red("%v", err)
				continue
			}
		}

		printed = waitForReply(ctx, ctrl, printed, timeout)
	}
}

// waitForReply polls the transcript until the bot answers, the response
// window lapses, or ctx is cancelled.
func waitForReply(ctx context.Context, ctrl *chatctl.Controller, printed int, timeout time.Duration) int {
	deadline := time.Now().Add(timeout + time.Second)
	for ctrl.Waiting() && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return printed
		case <-time.After(50 * time.Millisecond):
		}
	}
	return printNewEntries(ctrl, printed)
}

func printNewEntries(ctrl *chatctl.Controller, printed int) int {
	entries := ctrl.Transcript()
	for _, e := range entries[printed:] {
		switch e.Sender {
		case "bot":
			printBotEntry(e)
		case "system":
			color.HiBlack("-- %s", e.Text)
		}
	}
	return len(entries)
}

func printBotEntry(e chatctl.Entry) {
	var tag *color.Color
	switch e.Band {
	case chatctl.BandHigh:
		tag = color.New(color.FgGreen, color.Bold)
	case chatctl.BandMedium:
		tag = color.New(color.FgYellow, color.Bold)
	default:
		tag = color.New(color.FgRed, color.Bold)
	}
	tag.Printf("bot [%s %.0f%%]\n", e.Band, e.Confidence*100)
	fmt.Println(e.Raw)

	if len(e.Sources) > 0 {
		color.HiBlack("sources:")
		for _, src := range e.Sources {
			fmt.Printf("  - %s (%s, %.2f)\n", src.Title, src.Type, src.Relevance)
		}
	}
	if e.Geospatial != nil && e.Geospatial.HasSpatialData {
		printMapSummary(e.Geospatial)
	}
	if len(e.Suggestions) > 0 {
		color.HiBlack("suggestions:")
		for i, s := range e.Suggestions {
			fmt.Printf("  [%d] %s\n", i+1, s)
		}
	}
	fmt.Println()
}

func printMapSummary(g *geo.Result) {
	if g.MapData != nil {
		color.HiBlack("map: center %.4f, %.4f (zoom %d)", g.MapData.Center[0], g.MapData.Center[1], g.MapData.Zoom)
	}
	for _, c := range g.Coordinates {
		fmt.Printf("  coordinate: %.4f, %.4f\n", c.Lat, c.Lon)
	}
	for _, loc := range g.Locations {
		fmt.Printf("  location: %s\n", loc.Name)
	}
}
