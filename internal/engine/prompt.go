package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"parley.app/switchboard/internal/domain"
)

const systemPromptBase = `## Parley: Workspace Knowledge Assistant

You are Parley, an AI assistant for producing and organizing knowledge. Unlike
coding assistants that write software, your purpose is to help users create,
structure, and evolve knowledge, always in markdown.

## Workspace

The workspace is a structured collection of markdown files that serves as
persistent memory and context:

- Root files: README.md and key documentation
- docs/: documentation and reference materials
- Entity directories: tasks, journal entries, projects and similar records,
  one markdown file per entity

Use the available tools to read, search and edit workspace files. Keep entity
files consistent with the naming and frontmatter conventions already present
in the workspace.

## Workspace Boundaries

IMPORTANT: You are restricted to this workspace only. Never:
- Access, read, or reference files outside this workspace
- Navigate to parent directories (../) or sibling workspaces
- Use absolute paths outside the current workspace

If you become aware of other workspaces, do not mention or suggest work from
them. Stay focused on the current workspace's files and context.
`

// buildSystemPrompt assembles the system prompt for an invocation. When
// the incoming message carries UI context, the entity the user is
// looking at is attached inline so the model can treat it as primary
// context.
func buildSystemPrompt(workspacePath string, msgCtx *domain.MessageContext) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)

	if msgCtx == nil {
		return b.String()
	}

	switch {
	case msgCtx.EntityType != "" && msgCtx.EntityID != "":
		b.WriteString("\n## Attached Context\n\n")
		b.WriteString("The user is currently working with the following entity. ")
		b.WriteString("Use it as primary context for the conversation.\n\n")
		fmt.Fprintf(&b, "### %s/%s.md\n\n", msgCtx.EntityType, msgCtx.EntityID)
		if content := readEntity(workspacePath, msgCtx.EntityType, msgCtx.EntityID); content != "" {
			b.WriteString(content)
			b.WriteString("\n")
		}
	case msgCtx.View != "":
		fmt.Fprintf(&b, "\nThe user is currently viewing: %s\n", msgCtx.View)
	}

	if len(msgCtx.SourceIDs) > 0 {
		b.WriteString("\nThe user has constrained this conversation to the following sources: ")
		b.WriteString(strings.Join(msgCtx.SourceIDs, ", "))
		b.WriteString("\n")
	}

	return b.String()
}

// readEntity loads an entity's markdown from the workspace. Missing
// files and paths escaping the workspace yield empty content.
func readEntity(workspacePath, entityType, entityID string) string {
	path := filepath.Join(workspacePath, entityType, entityID+".md")
	if !pathWithinRoot(workspacePath, path) {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
