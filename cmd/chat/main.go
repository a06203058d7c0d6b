package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"parley.app/switchboard/common/llm"
	"parley.app/switchboard/internal/engine"
	"parley.app/switchboard/internal/transcript"
)

// Interactive harness for the agent engine. Talks straight to the
// engine without the HTTP server, so conversations still land in the
// transcript store and can be resumed by the server later.
func main() {
	ctx := context.Background()

	// Load .env file (ignore error if not found)
	_ = godotenv.Load()

	workspace := getEnv("WORKSPACE_PATH", ".")
	transcriptsDir := getEnv("TRANSCRIPTS_DIR", ".switchboard/transcripts")

	// LLM client - uses same env vars as the server
	provider := getEnv("LLM_PROVIDER", "anthropic")
	model := getEnv("LLM_MODEL", "claude-sonnet-4-20250514")
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "LLM_API_KEY is required")
		os.Exit(1)
	}

	client, err := llm.NewAgentClient(llm.Config{
		Provider: provider,
		APIKey:   apiKey,
		BaseURL:  os.Getenv("LLM_BASE_URL"),
		Model:    model,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create LLM client: %v\n", err)
		os.Exit(1)
	}

	agent, err := engine.New(engine.Config{
		Client:      client,
		Transcripts: transcript.NewStore(transcriptsDir),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create engine: %v\n", err)
		os.Exit(1)
	}

	// Resume an earlier conversation by exporting SESSION_ID.
	sessionID := os.Getenv("SESSION_ID")

	fmt.Fprintf(os.Stderr, "Chat ready (workspace=%s, model=%s)\n", workspace, model)
	fmt.Fprintln(os.Stderr, "Enter a message (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "quit" || message == "exit" || message == "q" {
			break
		}

		events, err := agent.Invoke(ctx, engine.InvokeRequest{
			Message:       message,
			WorkspacePath: workspace,
			ResumeID:      sessionID,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		for ev := range events {
			switch ev.Kind {
			case engine.EventTextDelta:
				fmt.Print(ev.Text)
			case engine.EventToolUseStart:
				fmt.Fprintf(os.Stderr, "\n[tool: %s]\n", ev.Tool)
			case engine.EventResult:
				// Carry the canonical id so the next message resumes
				// this conversation.
				sessionID = ev.SessionID
				if ev.IsError {
					fmt.Fprintf(os.Stderr, "\nError: %s\n", ev.ResultText)
				}
			}
		}
		fmt.Println()
		fmt.Println()
	}

	fmt.Fprintln(os.Stderr, "Goodbye!")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
