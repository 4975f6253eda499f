// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/provide-io/blocklaunch/pkg/fetch"
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/pipeline"
	"github.com/provide-io/blocklaunch/pkg/supervisor"
)

var (
	errorHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	okHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	labelStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	valueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle          = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	hintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Italic(true)
)

// renderError formats an error that is not tied to a launch.
func renderError(err error) string {
	return errorHeaderStyle.Render("✗ ") + err.Error()
}

// renderAborted explains a launch that never started the child.
func renderAborted(err error, report *fetch.Report) string {
	var sb strings.Builder
	sb.WriteString(errorHeaderStyle.Render("✗ Launch aborted before start"))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("Reason: "))
	sb.WriteString(err.Error())
	sb.WriteString("\n")
	if report != nil {
		if failures := report.Failures(); len(failures) > 0 {
			sb.WriteString("\n")
			sb.WriteString(renderFailures(failures))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderReport summarizes a successful preparation.
func renderReport(report *fetch.Report) string {
	var sb strings.Builder
	sb.WriteString(okHeaderStyle.Render("✓ Artifacts ready"))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s %d  %s %d  %s %d  %s %d\n",
		labelStyle.Render("verified"), report.Count(fetch.Verified),
		labelStyle.Render("downloaded"), report.Count(fetch.Downloaded),
		labelStyle.Render("failed"), report.Count(fetch.Failed),
		labelStyle.Render("requests"), report.NetworkRequests)
	if failures := report.Failures(); len(failures) > 0 {
		sb.WriteString("\n")
		sb.WriteString(hintStyle.Render("Optional artifacts that could not be installed:"))
		sb.WriteString("\n")
		sb.WriteString(renderFailures(failures))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderFailures(failures []fetch.Result) string {
	var sb strings.Builder
	for _, f := range failures {
		sb.WriteString("  • ")
		sb.WriteString(idStyle.Render(f.Artifact.Identity))
		sb.WriteString(" ")
		sb.WriteString(labelStyle.Render(f.Reason.String()))
		sb.WriteString("\n    ")
		sb.WriteString(valueStyle.Render(f.Artifact.Path))
		if f.Err != nil {
			sb.WriteString("\n    ")
			sb.WriteString(valueStyle.Render(f.Err.Error()))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderOutcome reports how the child ended.
func renderOutcome(id string, result *pipeline.Result) string {
	o := result.Outcome
	line := fmt.Sprintf("Process exited: %s %s after %s", idStyle.Render(id), o.String(), result.Duration.Round(time.Millisecond))
	switch {
	case o.Terminated:
		return hintStyle.Render(line + " (stopped by launcher)")
	case o.Kind == supervisor.Success:
		return okHeaderStyle.Render("✓ ") + line
	default:
		return errorHeaderStyle.Render("✗ ") + line
	}
}

// renderVersions lists catalog entries, newest first as published.
func renderVersions(latest manifest.Latest, entries []manifest.CatalogEntry, installed func(manifest.VersionID) bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s  %s %s\n\n",
		labelStyle.Render("latest release:"), idStyle.Render(string(latest.Release)),
		labelStyle.Render("snapshot:"), idStyle.Render(string(latest.Snapshot)))

	width := 0
	for _, e := range entries {
		width = max(width, len(e.ID))
	}
	for _, e := range entries {
		marker := "  "
		if installed(e.ID) {
			marker = okHeaderStyle.Render("● ")
		}
		fmt.Fprintf(&sb, "%s%-*s  %-10s %s\n", marker, width, e.ID, e.Type, valueStyle.Render(e.ReleaseTime))
	}
	return strings.TrimRight(sb.String(), "\n")
}
