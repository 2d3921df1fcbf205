package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// AtProcessor expands @path references in a query into a composite query
// that carries the referenced file contents. Paths resolve against the
// project root; references that cannot be read are left in place so the
// model still sees what the user typed.
type AtProcessor struct {
	root   string
	logger *slog.Logger
}

// NewAtProcessor builds an expander rooted at the given project directory.
func NewAtProcessor(root string, logger *slog.Logger) *AtProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AtProcessor{root: root, logger: logger}
}

// Expand returns the query followed by a content section for every readable
// @path reference. A query with no readable references comes back unchanged.
func (p *AtProcessor) Expand(ctx context.Context, query string) (string, error) {
	refs := atReferences(query)
	if len(refs) == 0 {
		return query, nil
	}

	var sections []string
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, rel, err := p.readRef(ref)
		if err != nil {
			p.logger.Warn("skipping @ reference", "path", ref, "error", err)
			continue
		}
		sections = append(sections, fmt.Sprintf("--- %s ---\n\n%s\n", rel, content))
	}
	if len(sections) == 0 {
		return query, nil
	}

	var b strings.Builder
	b.WriteString(query)
	b.WriteString("\n\n--- Content from referenced files ---\n\n")
	for _, s := range sections {
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// readRef resolves one reference against the root and returns its content
// plus the root-relative display path.
func (p *AtProcessor) readRef(ref string) (content, rel string, err error) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.root, path)
	}
	path = filepath.Clean(path)
	if p.root != "" && !strings.HasPrefix(path+string(filepath.Separator), filepath.Clean(p.root)+string(filepath.Separator)) {
		return "", "", fmt.Errorf("path %q is outside the project root", ref)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", "", err
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("%q is a directory", ref)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}

	rel = ref
	if r, err := filepath.Rel(p.root, path); err == nil && !strings.HasPrefix(r, "..") {
		rel = r
	}
	return string(data), rel, nil
}

// atReferences extracts the paths of all @path tokens in order, deduplicated.
// A bare "@" with no path is ignored.
func atReferences(query string) []string {
	var (
		refs []string
		seen = map[string]bool{}
	)
	for i := 0; i < len(query); i++ {
		if query[i] != '@' {
			continue
		}
		// An @ inside a word (user@host) is not a reference.
		if i > 0 && !unicode.IsSpace(rune(query[i-1])) {
			continue
		}
		j := i + 1
		for j < len(query) && !unicode.IsSpace(rune(query[j])) {
			j++
		}
		ref := strings.TrimRight(query[i+1:j], ".,;:!?")
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
		i = j
	}
	return refs
}
