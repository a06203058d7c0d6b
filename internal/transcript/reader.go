package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"parley.app/switchboard/internal/domain"
)

// Transcript lines can carry large tool results; allow up to 4 MiB per line.
const maxLineBytes = 4 * 1024 * 1024

// Tool results are truncated to this many characters for history rendering.
const toolResultLimit = 1000

// Reader extracts renderable message history from transcript JSONL files.
type Reader struct {
	store *Store
}

func NewReader(store *Store) *Reader {
	return &Reader{store: store}
}

// History parses a session's transcript and returns its consolidated
// message history. A missing transcript yields an empty history, not an
// error. Malformed lines are skipped.
func (r *Reader) History(workspacePath, sessionID string) ([]domain.TranscriptMessage, error) {
	f, err := os.Open(r.store.Path(workspacePath, sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	messages, err := Parse(f)
	if err != nil {
		return nil, err
	}
	return Consolidate(messages), nil
}

type transcriptEntry struct {
	Type    string `json:"type"`
	IsMeta  bool   `json:"isMeta"`
	Message struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	Content json.RawMessage `json:"content"`
}

// Parse reads transcript JSONL and emits one message per logical unit:
// user text, assistant text, tool_use and tool_result blocks. Blank and
// unparseable lines are skipped, as are meta entries (skill prompts and
// other system injections).
func Parse(r io.Reader) ([]domain.TranscriptMessage, error) {
	var messages []domain.TranscriptMessage

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry transcriptEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.IsMeta {
			continue
		}

		switch entry.Type {
		case "human", "user":
			messages = append(messages, parseUserContent(entry.Message.Content)...)
		case "assistant":
			messages = append(messages, parseAssistantContent(entry.Message.Content)...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning transcript: %w", err)
	}

	return messages, nil
}

// parseUserContent handles both content shapes the upstream agent
// writes: a bare string, or an array of text blocks.
func parseUserContent(content json.RawMessage) []domain.TranscriptMessage {
	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []domain.TranscriptMessage{{Role: domain.RoleUser, Content: text}}
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(content, &blocks); err != nil {
		return nil
	}

	var textParts []string
	for _, raw := range blocks {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			textParts = append(textParts, s)
			continue
		}
		var block contentBlock
		if err := json.Unmarshal(raw, &block); err == nil && block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}
	if len(textParts) == 0 {
		return nil
	}
	return []domain.TranscriptMessage{{Role: domain.RoleUser, Content: strings.Join(textParts, "\n")}}
}

// parseAssistantContent emits tool_use and tool_result blocks in place
// and gathers the entry's text blocks into a single trailing message.
func parseAssistantContent(content json.RawMessage) []domain.TranscriptMessage {
	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return nil
	}

	var (
		messages  []domain.TranscriptMessage
		textParts []string
	)
	for _, block := range blocks {
		switch block.Type {
		case "text":
			textParts = append(textParts, block.Text)
		case "tool_use":
			name := block.Name
			messages = append(messages, domain.TranscriptMessage{
				Role:     domain.RoleToolUse,
				Content:  compactJSON(block.Input),
				ToolName: &name,
			})
		case "tool_result":
			messages = append(messages, domain.TranscriptMessage{
				Role:    domain.RoleToolResult,
				Content: truncate(toolResultText(block.Content), toolResultLimit),
			})
		}
	}
	if len(textParts) > 0 {
		messages = append(messages, domain.TranscriptMessage{
			Role:    domain.RoleAssistant,
			Content: strings.Join(textParts, "\n"),
		})
	}
	return messages
}

// Consolidate merges consecutive assistant texts into one message per
// turn, matching what a live subscriber saw while the turn streamed.
// Buffered texts flush before the next user message and at the end;
// tool_use and tool_result entries pass through in place.
func Consolidate(messages []domain.TranscriptMessage) []domain.TranscriptMessage {
	var (
		consolidated []domain.TranscriptMessage
		pendingTexts []string
	)

	flush := func() {
		if len(pendingTexts) == 0 {
			return
		}
		consolidated = append(consolidated, domain.TranscriptMessage{
			Role:    domain.RoleAssistant,
			Content: strings.Join(pendingTexts, "\n\n"),
		})
		pendingTexts = nil
	}

	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleUser:
			flush()
			consolidated = append(consolidated, msg)
		case domain.RoleAssistant:
			pendingTexts = append(pendingTexts, msg.Content)
		default:
			consolidated = append(consolidated, msg)
		}
	}
	flush()

	return consolidated
}

// toolResultText renders a tool_result content payload, which may be a
// plain string or a list of blocks.
func toolResultText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}

	var items []any
	if err := json.Unmarshal(content, &items); err != nil {
		return string(content)
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			parts = append(parts, v)
		case map[string]any:
			if text, ok := v["text"].(string); ok {
				parts = append(parts, text)
			} else if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, "\n")
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
