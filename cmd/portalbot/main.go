// ABOUTME: Entry point for the portalbot server
// ABOUTME: Serves the help bot API, websocket chat, and knowledge graph

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	chromem "github.com/philippgille/chromem-go"

	"github.com/skyarc/portalbot/internal/config"
	"github.com/skyarc/portalbot/internal/index"
	"github.com/skyarc/portalbot/internal/ingest"
	"github.com/skyarc/portalbot/internal/kg"
	"github.com/skyarc/portalbot/internal/resolver"
	"github.com/skyarc/portalbot/internal/server"
	"github.com/skyarc/portalbot/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _        _ _           _
  _ __   ___  _ __ _| |_ __ _| | |__   ___ | |_
 | '_ \ / _ \| '__|_  _/ _' | | '_ \ / _ \| __|
 | |_) | (_) | |    | || (_| | | |_) | (_) | |_
 | .__/ \___/|_|    |_| \__,_|_|_.__/ \___/ \__|
 |_|
`

// getConfigPath returns the path to the portalbot config file.
// Priority: PORTALBOT_CONFIG env var > XDG_CONFIG_HOME/portalbot/portalbot.yaml > ~/.config/portalbot/portalbot.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PORTALBOT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "portalbot.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "portalbot", "portalbot.yaml")
}

// getDataPath returns the path to the portalbot data directory.
// Priority: XDG_DATA_HOME/portalbot > ~/.local/share/portalbot
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "portalbot")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: portalbot <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve         Start the portal bot server")
		fmt.Println("  init          Create a new config file interactively")
		fmt.Println("  health        Check server health")
		fmt.Println("  crawl --url U One-shot portal crawl and ingest")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "crawl":
		err = runCrawl(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Embedder:  %s\n", cfg.Index.Embedder)
	fmt.Println()

	logger.Info("starting portalbot",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	srv, st, err := buildServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return srv.Run(ctx)
}

// buildServer wires the store, index, graph, resolver, and ingestion
// pipeline into a server.
func buildServer(ctx context.Context, cfg *config.Config) (*server.Server, store.Store, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	idx, err := index.New(cfg.Index.Path, embedder(cfg))
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("opening index: %w", err)
	}

	graph := kg.New(st, idx)
	if err := graph.Seed(ctx, cfg.Seed.Path); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("seeding knowledge graph: %w", err)
	}

	res := resolver.New(idx, graph)
	scraper := ingest.NewScraper(ingest.Options{
		MaxPages:   cfg.Ingest.MaxPages,
		DepthLimit: cfg.Ingest.DepthLimit,
		Delay:      cfg.Ingest.Delay,
		UserAgent:  cfg.Ingest.UserAgent,
	})
	processor := ingest.NewProcessor()

	return server.New(cfg, st, graph, idx, res, scraper, processor), st, nil
}

func embedder(cfg *config.Config) chromem.EmbeddingFunc {
	if cfg.Index.Embedder == "openai" {
		return index.OpenAIEmbedder(cfg.Index.EmbedderURL, cfg.Index.EmbedderModel)
	}
	return index.LocalEmbedder()
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs), then record attrs
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runCrawl ingests a portal in-process without starting the server,
// useful for building the knowledge graph from the command line.
func runCrawl(ctx context.Context) error {
	var url string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--url" || arg == "-u":
			if i+1 >= len(args) {
				return fmt.Errorf("--url requires a value")
			}
			url = args[i+1]
			i++
		case strings.HasPrefix(arg, "--url="):
			url = strings.TrimPrefix(arg, "--url=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if url == "" {
		return fmt.Errorf("--url flag is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	idx, err := index.New(cfg.Index.Path, embedder(cfg))
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}

	graph := kg.New(st, idx)
	scraper := ingest.NewScraper(ingest.Options{
		MaxPages:   cfg.Ingest.MaxPages,
		DepthLimit: cfg.Ingest.DepthLimit,
		Delay:      cfg.Ingest.Delay,
		UserAgent:  cfg.Ingest.UserAgent,
	})
	processor := ingest.NewProcessor()

	fmt.Printf("Crawling %s ...\n", url)

	pages, err := scraper.Crawl(ctx, url)
	if err != nil {
		return fmt.Errorf("crawling: %w", err)
	}

	processed := processor.Process(pages)
	items := make([]kg.ContentItem, 0, len(processed))
	for _, p := range processed {
		items = append(items, kg.ContentItem{
			URL:         p.URL,
			Title:       p.Title,
			Description: p.Description,
			Content:     p.Content,
			PageType:    p.PageType,
			Keywords:    p.Keywords,
		})
	}

	added, err := graph.UpdateFromContent(ctx, items)
	if err != nil {
		return fmt.Errorf("updating knowledge graph: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ %d pages crawled, %d content entities added\n", len(pages), added)

	stats, err := graph.Stats(ctx)
	if err == nil {
		out, _ := json.MarshalIndent(stats, "  ", "  ")
		fmt.Printf("  Graph: %s\n", out)
	}
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("portalbot configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "portalbot.db")
	defaultIndexPath := filepath.Join(defaultDataPath, "index")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Storage Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)
	indexPath := prompt(reader, "Vector index path (empty for in-memory)", defaultIndexPath)

	fmt.Println("\n--- Ingestion Configuration ---")
	maxPages := prompt(reader, "Max pages per crawl", "50")
	depthLimit := prompt(reader, "Crawl depth limit", "2")
	delay := prompt(reader, "Delay between requests", "1s")

	fmt.Println("\n--- Knowledge Seeding ---")
	seedPath := prompt(reader, "Seed file path (empty to skip)", "")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# portalbot configuration\n")
	cfg.WriteString("# Generated by portalbot init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("index:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", indexPath))
	cfg.WriteString("  embedder: \"local\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("ingest:\n")
	cfg.WriteString(fmt.Sprintf("  max_pages: %s\n", maxPages))
	cfg.WriteString(fmt.Sprintf("  depth_limit: %s\n", depthLimit))
	cfg.WriteString(fmt.Sprintf("  delay: \"%s\"\n", delay))
	cfg.WriteString("\n")

	cfg.WriteString("chat:\n")
	cfg.WriteString("  response_timeout: \"30s\"\n")
	cfg.WriteString("  history_limit: 50\n")
	cfg.WriteString("\n")

	if seedPath != "" {
		cfg.WriteString("seed:\n")
		cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", seedPath))
		cfg.WriteString("\n")
	}

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  portalbot serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
