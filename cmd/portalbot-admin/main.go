// ABOUTME: Admin CLI for the portal bot: stats, search, ingestion, and logs.
// ABOUTME: Drives the adminctl controller and renders tabwriter tables.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/skyarc/portalbot/internal/client/adminctl"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: portalbot-admin <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  stats           Show knowledge graph statistics")
		fmt.Println("  search <query>  Search the knowledge graph")
		fmt.Println("  ingest <url>    Crawl and ingest a portal")
		fmt.Println("  logs            Show recent ingestion activity")
		fmt.Println("  watch           Interactive section navigation")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  PORTALBOT_SERVER  API base URL (default http://localhost:8080)")
		fmt.Println("  PORTALBOT_TOKEN   Bearer token for authenticated endpoints")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := os.Getenv("PORTALBOT_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	ctrl := adminctl.New(server, os.Getenv("PORTALBOT_TOKEN"))

	var err error
	switch os.Args[1] {
	case "stats":
		err = runStats(ctx, ctrl)
	case "search":
		err = runSearch(ctx, ctrl, strings.Join(os.Args[2:], " "))
	case "ingest":
		if len(os.Args) < 3 {
			err = fmt.Errorf("usage: portalbot-admin ingest <url>")
		} else {
			err = runIngest(ctx, ctrl, os.Args[2])
		}
	case "logs":
		err = runLogs(ctx, ctrl)
	case "watch":
		err = runWatch(ctx, ctrl)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(ctx context.Context, ctrl *adminctl.Controller) error {
	if err := ctrl.RefreshDashboard(ctx); err != nil {
		return err
	}
	printDashboard(ctrl.Dashboard)
	return nil
}

func printDashboard(d adminctl.DashboardView) {
	bold := color.New(color.Bold)

	bold.Println("Knowledge Graph")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "  entities\t%d\n", d.Stats.Nodes)
	fmt.Fprintf(w, "  relations\t%d\n", d.Stats.Edges)
	fmt.Fprintf(w, "  components\t%d\n", d.Stats.ConnectedComponents)
	fmt.Fprintf(w, "  density\t%.4f\n", d.Stats.Density)
	fmt.Fprintf(w, "  updated\t%s\n", d.Stats.LastUpdated)
	w.Flush()

	if len(d.Distribution) > 0 {
		fmt.Println()
		bold.Println("Entity Types")
		w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, share := range d.Distribution {
			fmt.Fprintf(w, "  %s\t%d\t%.1f%%\n", share.Type, share.Count, share.Percent)
		}
		w.Flush()
	}

	if len(d.Activity) > 0 {
		fmt.Println()
		bold.Println("Recent Activity")
		w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, row := range d.Activity {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", row.CreatedAt, statusTag(row.Status), row.URL, row.Message)
		}
		w.Flush()
	}
}

func runSearch(ctx context.Context, ctrl *adminctl.Controller, query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("usage: portalbot-admin search <query>")
	}

	ctrl.Search(ctx, query)
	printSearchPane(ctrl.SearchPane)
	return nil
}

func printSearchPane(pane adminctl.SearchView) {
	if pane.Error != "" {
		color.Red("%s", pane.Error)
		return
	}
	if pane.NoResults {
		fmt.Println("No results found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MATCH\tNAME\tTYPE\tDESCRIPTION")
	for _, row := range pane.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Match, row.Name, row.Type, row.Description)
	}
	w.Flush()
}

func runIngest(ctx context.Context, ctrl *adminctl.Controller, url string) error {
	fmt.Printf("Ingesting %s ...\n", url)
	ctrl.Ingest(ctx, url)

	if strings.HasPrefix(ctrl.IngestPane.Message, "Error:") {
		color.Red("%s", ctrl.IngestPane.Message)
		return fmt.Errorf("ingestion failed")
	}
	color.Green("%s", ctrl.IngestPane.Message)
	return nil
}

func runLogs(ctx context.Context, ctrl *adminctl.Controller) error {
	if err := ctrl.RefreshLogs(ctx); err != nil {
		return err
	}
	printLogsPane(ctrl.LogsPane)
	return nil
}

func printLogsPane(pane adminctl.LogsView) {
	if len(pane.Entries) == 0 {
		fmt.Println("No log entries.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTATUS\tTYPE\tURL\tMESSAGE")
	for _, row := range pane.Entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row.CreatedAt, statusTag(row.Status), row.PageType, row.URL, row.Message)
	}
	w.Flush()
}

func statusTag(status string) string {
	switch status {
	case "ok", "completed":
		return color.GreenString(status)
	case "error":
		return color.RedString(status)
	default:
		return status
	}
}

// runWatch is a small REPL that navigates dashboard sections.
func runWatch(ctx context.Context, ctrl *adminctl.Controller) error {
	sections := map[string]adminctl.Section{
		"dashboard": adminctl.SectionDashboard,
		"graph":     adminctl.SectionKnowledgeGraph,
		"ingestion": adminctl.SectionDataIngestion,
		"logs":      adminctl.SectionSystemLogs,
	}

	fmt.Println("Sections: dashboard, graph, ingestion, logs")
	fmt.Println("Commands: search <query>, ingest <url>, quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	prompt := color.New(color.FgCyan, color.Bold)

	for {
		prompt.Printf("admin:%s> ", ctrl.ActiveSection)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "search":
			ctrl.Search(ctx, arg)
			if ctrl.ActiveSection != adminctl.SectionKnowledgeGraph {
				if err := ctrl.Navigate(ctx, adminctl.SectionKnowledgeGraph); err != nil {
					color.Red("%v", err)
					continue
				}
			}
			printSearchPane(ctrl.SearchPane)
		case "ingest":
			ctrl.Ingest(ctx, arg)
			fmt.Println(ctrl.IngestPane.Message)
		default:
			section, ok := sections[cmd]
			if !ok {
				color.Red("unknown section or command: %s", cmd)
				continue
			}
			if err := ctrl.Navigate(ctx, section); err != nil {
				color.Red("%v", err)
				continue
			}
			switch section {
			case adminctl.SectionDashboard:
				printDashboard(ctrl.Dashboard)
			case adminctl.SectionSystemLogs:
				printLogsPane(ctrl.LogsPane)
			case adminctl.SectionKnowledgeGraph:
				fmt.Println("Use: search <query>")
			case adminctl.SectionDataIngestion:
				fmt.Println("Use: ingest <url>")
			}
		}
	}
}
