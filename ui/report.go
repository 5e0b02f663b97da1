package ui

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"timbersim/domain/core"
	"timbersim/domain/simulation"
)

// handleRunReport renders one run's manifest as an HTML report
func (a *App) handleRunReport(w http.ResponseWriter, r *http.Request) {
	id := core.RunID(chi.URLParam(r, "id"))
	manifest, err := a.runs.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	md := renderRunMarkdown(manifest)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	html := markdown.ToHTML([]byte(md), p, renderer)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

// renderRunMarkdown formats a run manifest as a markdown report
func renderRunMarkdown(m *simulation.RunManifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Simulation run %s\n\n", m.RunID)
	fmt.Fprintf(&b, "- Seed: `%d`\n", m.Seed)
	fmt.Fprintf(&b, "- Rows: %d\n", m.N)
	fmt.Fprintf(&b, "- Anchor sampler: %s\n", m.Sampler)
	fmt.Fprintf(&b, "- Variables: %s\n\n", strings.Join(m.Variables, ", "))

	b.WriteString("## Subsamples\n\n")
	b.WriteString("| Subsample | Rows | Variable | Target mean | Realized mean | Target sd | Realized sd |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, sub := range m.Subsamples {
		for _, anchor := range sub.Anchors {
			fmt.Fprintf(&b, "| %s | %d | %s | %.3f | %.3f | %.3f | %.3f |\n",
				sub.Key, sub.Rows, anchor.Variable,
				anchor.TargetMean, anchor.RealizedMean, anchor.TargetSD, anchor.RealizedSD)
		}
	}
	return b.String()
}
