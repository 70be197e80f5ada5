package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/charmbracelet/lipgloss"

	"github.com/MeKo-Tech/wallplan/internal/config"
	"github.com/MeKo-Tech/wallplan/internal/estimate"
	"github.com/MeKo-Tech/wallplan/internal/i18n"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorDim    = lipgloss.Color("240")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleLabel   = lipgloss.NewStyle().Foreground(colorDim).Width(18)
	styleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
)

func printSuccess(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, styleWarning.Render(iconWarning+" "+fmt.Sprintf(format, args...)))
}

func printDetail(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, "  "+styleDim.Render(fmt.Sprintf(format, args...)))
}

func row(label, value string) string {
	return styleLabel.Render(label) + " " + value
}

// printResultSummary writes a short styled report of one analysis.
func printResultSummary(w io.Writer, name string, res *pipeline.Result, lang string) {
	l := res.Layout
	unit := "px"
	if l.Scale.Calibrated() {
		unit = "cm"
	}
	lines := []string{
		styleTitle.Render(name),
		row(i18n.T(lang, "dimensions"), styleNumber.Render(fmt.Sprintf("%.1f × %.1f %s", l.Wall.W, l.Wall.H, unit))),
		row(i18n.T(lang, "source"), string(l.Source)),
		row(i18n.T(lang, "openings"), styleNumber.Render(fmt.Sprint(len(l.Openings)))),
	}
	if len(l.Blocks) > 0 {
		lines = append(lines, row(i18n.T(lang, "blocks"), styleNumber.Render(fmt.Sprint(len(l.Blocks)))))
	}
	if d := res.Timings.Of(pipeline.StepDetect); d > 0 {
		lines = append(lines, row("detect", d.Round(time.Millisecond).String()))
	}
	lines = append(lines, row("time", time.Duration(res.Timings.TotalNs).Round(time.Millisecond).String()))
	_, _ = fmt.Fprintln(w, strings.Join(lines, "\n"))
	for _, warn := range res.Warnings {
		printWarning(w, "%s", warn)
	}
}

// writeEstimateText renders an estimate as a localized table.
func writeEstimateText(w io.Writer, s *estimate.LayoutSummary, lang string) error {
	var sb strings.Builder
	sb.WriteString(styleTitle.Render(i18n.T(lang, "calc_section")) + "\n")
	sb.WriteString(row(i18n.T(lang, "wall_area"), fmt.Sprintf("%.2f m²", s.WallArea)) + "\n")
	sb.WriteString(row(i18n.T(lang, "openings"), fmt.Sprintf("%.2f m²", s.OpeningArea)) + "\n")
	sb.WriteString(row(i18n.T(lang, "wall_volume"), fmt.Sprintf("%.3f m³", s.WallVolume)) + "\n")
	sb.WriteString(row(i18n.T(lang, "mortar_volume"), fmt.Sprintf("%.3f m³", s.MortarVolume)) + "\n")
	sb.WriteString(row(i18n.T(lang, "wall_weight"), fmt.Sprintf("%.1f kg", s.WallWeight)) + "\n")
	sb.WriteString(styleTitle.Render(i18n.T(lang, "block_summary")) + "\n")
	for _, line := range s.Blocks {
		name := line.Name
		if name == "" {
			name = fmt.Sprintf("%s %d", i18n.T(lang, "block"), line.Type)
		}
		fmt.Fprintf(&sb, "  %-20s %-12s %6d × %.2f = %.2f\n",
			name, line.Dimensions, line.Quantity, line.UnitPrice, line.TotalPrice)
	}
	sb.WriteString(row(i18n.T(lang, "total_price"), styleNumber.Render(fmt.Sprintf("%.2f", s.TotalPrice))) + "\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// newLogHandler picks the slog handler for the configured format: JSON
// lines, or charmbracelet/log's human readable output.
func newLogHandler(w io.Writer, cfg *config.Config) slog.Handler {
	level := logLevel(cfg)
	if cfg.LogFormat == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           charmlog.Level(level),
	})
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
