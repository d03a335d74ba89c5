package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/yourusername/queryweaver/display"
	"github.com/yourusername/queryweaver/internal/app"
)

var (
	version = "1.0.0"
)

func main() {
	// .env is optional; environment variables win either way
	_ = godotenv.Load()

	fmt.Printf("🧵 QueryWeaver v%s\n", version)
	fmt.Printf("🔄 Initializing...\n")

	application, err := app.New(nil)
	if err != nil {
		fmt.Printf("❌ Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	fmt.Printf("✅ Application ready\n")
	application.Invoker().Progress = display.NewRenderer().ProgressCallback()
	showWelcome()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		fmt.Println("\n👋 Gracefully shutting down QueryWeaver...")
		cancel()
		application.Close()
		os.Exit(0)
	}()

	runInteractiveCLI(ctx, application)
}

func runInteractiveCLI(ctx context.Context, application *app.Application) {
	promptColor := color.New(color.FgCyan, color.Bold)
	renderer := display.NewRenderer()
	reader := bufio.NewScanner(os.Stdin)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		promptColor.Print("weaver> ")
		if !reader.Scan() {
			fmt.Println("\n👋 Goodbye!")
			return
		}
		input := strings.TrimSpace(reader.Text())
		if input == "" {
			continue
		}

		cmd, arg := splitCommand(input)
		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("👋 Goodbye!")
			return
		case "help", "h":
			showHelp()
		case "sessions":
			showSessions(ctx, application)
		case "show":
			showSession(ctx, application, renderer, arg)
		case "sources":
			showSources(application)
		case "describe":
			describeSource(ctx, application, arg)
		case "refresh":
			refreshSource(ctx, application, arg)
		default:
			processQuestion(ctx, application, renderer, input)
		}
	}
}

// splitCommand returns the first word lowercased and the remainder
func splitCommand(input string) (string, string) {
	parts := strings.SplitN(input, " ", 2)
	cmd := strings.ToLower(parts[0])
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

func processQuestion(ctx context.Context, application *app.Application, renderer *display.Renderer, question string) {
	fmt.Printf("🧠 Working on it...\n")

	session, err := application.Ask(ctx, question)
	if err != nil {
		color.Red("❌ Error: %v\n", err)
		return
	}

	renderer.ShowSession(session)
}

func showSessions(ctx context.Context, application *app.Application) {
	summaries, err := application.Sessions(ctx, 20)
	if err != nil {
		color.Red("❌ Failed to list sessions: %v\n", err)
		return
	}
	if len(summaries) == 0 {
		fmt.Println("📭 No sessions yet")
		return
	}

	fmt.Printf("📚 Recent sessions (%d):\n", len(summaries))
	for _, s := range summaries {
		question := s.UserQuestion
		if len(question) > 60 {
			question = question[:57] + "..."
		}
		fmt.Printf("  %s  [%s]  %s\n", s.SessionID, s.State, question)
	}
}

func showSession(ctx context.Context, application *app.Application, renderer *display.Renderer, sessionID string) {
	if sessionID == "" {
		color.Yellow("Usage: show <session-id>\n")
		return
	}
	session, err := application.Session(ctx, sessionID)
	if err != nil {
		color.Red("❌ Failed to load session: %v\n", err)
		return
	}
	renderer.ShowSession(session)
}

func showSources(application *app.Application) {
	ids := application.SourceIDs()
	if len(ids) == 0 {
		fmt.Println("📭 No data sources configured")
		return
	}
	fmt.Printf("🗄️ Configured sources (%d):\n", len(ids))
	for _, id := range ids {
		fmt.Printf("  - %s\n", id)
	}
}

func describeSource(ctx context.Context, application *app.Application, sourceID string) {
	if sourceID == "" {
		color.Yellow("Usage: describe <source-id>\n")
		return
	}
	schema, err := application.Describe(ctx, sourceID)
	if err != nil {
		color.Red("❌ Failed to describe source: %v\n", err)
		return
	}

	fmt.Printf("🗄️ %s (%s)\n", schema.SourceID, schema.SourceType)
	for _, table := range schema.Tables {
		fmt.Printf("  📋 %s (%d rows)\n", table.Name, table.RowCount)
		for _, col := range table.Columns {
			flags := ""
			if col.PrimaryKey {
				flags = " PK"
			}
			if col.Nullable {
				flags += " NULL"
			}
			fmt.Printf("     %-24s %s%s\n", col.Name, col.Type, flags)
		}
	}
}

func refreshSource(ctx context.Context, application *app.Application, sourceID string) {
	if sourceID == "" {
		color.Yellow("Usage: refresh <source-id>\n")
		return
	}
	schema, err := application.Refresh(ctx, sourceID)
	if err != nil {
		color.Red("❌ Failed to refresh source: %v\n", err)
		return
	}
	fmt.Printf("🔄 Rediscovered %s (%d tables)\n", schema.SourceID, len(schema.Tables))
}

func showWelcome() {
	fmt.Println()
	fmt.Println("💬 Ask a question in plain language and I'll plan and run the")
	fmt.Println("   queries across your configured data sources.")
	fmt.Println()
	fmt.Println("📝 Examples:")
	fmt.Println("  • which customers placed orders over $500 last month?")
	fmt.Println("  • how many support tickets mention refunds?")
	fmt.Println()
	fmt.Println("Type 'help' for commands, 'quit' to exit")
	fmt.Println()
}

func showHelp() {
	fmt.Println("📖 Commands:")
	fmt.Println("  <question>        ask a question across your data sources")
	fmt.Println("  sessions          list recent sessions")
	fmt.Println("  show <id>         print the full record of a session")
	fmt.Println("  sources           list configured data sources")
	fmt.Println("  describe <id>     print the schema of a source")
	fmt.Println("  refresh <id>      rediscover the schema of a source")
	fmt.Println("  help, h           show this help")
	fmt.Println("  quit, exit, q     exit")
}
