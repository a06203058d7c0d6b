package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"parley.app/switchboard/internal/engine"
)

var _ = Describe("WorkspaceTools", func() {
	var (
		ctx   context.Context
		root  string
		tools *engine.WorkspaceTools
	)

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
		tools = engine.NewWorkspaceTools(root)
	})

	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	}

	Describe("Definitions", func() {
		It("exposes the workspace tool set", func() {
			names := make([]string, 0, 4)
			for _, def := range tools.Definitions() {
				names = append(names, def.Name)
			}
			Expect(names).To(Equal([]string{"read_file", "write_file", "list_dir", "search"}))
		})
	})

	Describe("Execute", func() {
		It("rejects unknown tools", func() {
			_, err := tools.Execute(ctx, "teleport", "{}")
			Expect(err).To(MatchError(ContainSubstring("unknown tool")))
		})

		It("rejects malformed arguments", func() {
			_, err := tools.Execute(ctx, "read_file", "{not json")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("read_file", func() {
		It("returns numbered lines", func() {
			write("notes.md", "alpha\nbeta\n")

			out, err := tools.Execute(ctx, "read_file", `{"path":"notes.md"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("     1\talpha"))
			Expect(out).To(ContainSubstring("     2\tbeta"))
			Expect(out).To(ContainSubstring("End of file."))
		})

		It("honors offset and limit", func() {
			write("notes.md", "one\ntwo\nthree\nfour\n")

			out, err := tools.Execute(ctx, "read_file", `{"path":"notes.md","offset":2,"limit":2}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("     2\ttwo"))
			Expect(out).To(ContainSubstring("     3\tthree"))
			Expect(out).NotTo(ContainSubstring("one"))
			Expect(out).To(ContainSubstring("File continues to line 4."))
		})

		It("reports missing files without failing", func() {
			out, err := tools.Execute(ctx, "read_file", `{"path":"ghost.md"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Error: file not found: ghost.md"))
		})

		It("refuses paths outside the workspace", func() {
			out, err := tools.Execute(ctx, "read_file", `{"path":"../secrets.txt"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Error: path outside workspace"))
		})
	})

	Describe("write_file", func() {
		It("creates parent directories and writes the file", func() {
			out, err := tools.Execute(ctx, "write_file", `{"path":"tasks/plan.md","content":"# Plan\n"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Wrote 7 bytes to tasks/plan.md"))

			data, readErr := os.ReadFile(filepath.Join(root, "tasks", "plan.md"))
			Expect(readErr).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("# Plan\n"))
		})

		It("refuses to write outside the workspace", func() {
			out, err := tools.Execute(ctx, "write_file", `{"path":"../../escape.md","content":"x"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Error: path outside workspace"))
		})
	})

	Describe("list_dir", func() {
		It("marks directories with a trailing slash", func() {
			write("docs/guide.md", "hello")
			write("README.md", "hi")

			out, err := tools.Execute(ctx, "list_dir", `{}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("docs/\n"))
			Expect(out).To(ContainSubstring("README.md\n"))
		})

		It("reports empty directories", func() {
			Expect(os.MkdirAll(filepath.Join(root, "empty"), 0o755)).To(Succeed())

			out, err := tools.Execute(ctx, "list_dir", `{"path":"empty"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Directory is empty"))
		})

		It("reports missing directories without failing", func() {
			out, err := tools.Execute(ctx, "list_dir", `{"path":"nowhere"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("directory not found"))
		})
	})

	Describe("search", func() {
		BeforeEach(func() {
			write("tasks/open.md", "status: open\nroadmap item\n")
			write("tasks/done.md", "status: done\n")
			write("journal/today.md", "Roadmap review went well\n")
		})

		It("returns file:line matches with relative paths", func() {
			out, err := tools.Execute(ctx, "search", `{"pattern":"status: open"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(filepath.Join("tasks", "open.md") + ":1:status: open"))
			Expect(out).NotTo(ContainSubstring("done.md"))
		})

		It("supports case insensitive search", func() {
			out, err := tools.Execute(ctx, "search", `{"pattern":"roadmap","ignore_case":true}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("open.md"))
			Expect(out).To(ContainSubstring("today.md"))
		})

		It("filters files by glob", func() {
			write("data.txt", "roadmap\n")

			out, err := tools.Execute(ctx, "search", `{"pattern":"roadmap","glob":"*.md"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("open.md"))
			Expect(out).NotTo(ContainSubstring("data.txt"))
		})

		It("reports when nothing matches", func() {
			out, err := tools.Execute(ctx, "search", `{"pattern":"zebra"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("No matches for pattern: zebra"))
		})

		It("reports invalid patterns without failing", func() {
			out, err := tools.Execute(ctx, "search", `{"pattern":"("}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HavePrefix("Error: invalid pattern"))
		})

		It("skips hidden directories", func() {
			write(".git/config", "roadmap\n")

			out, err := tools.Execute(ctx, "search", `{"pattern":"roadmap"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(out).NotTo(ContainSubstring(".git"))
		})

		It("caps the number of matches", func() {
			var b strings.Builder
			for i := 0; i < 80; i++ {
				b.WriteString("needle\n")
			}
			write("big.md", b.String())

			out, err := tools.Execute(ctx, "search", `{"pattern":"needle"}`)

			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Count(out, "big.md:")).To(Equal(50))
			Expect(out).To(ContainSubstring("Showing 50 matches"))
		})
	})
})
