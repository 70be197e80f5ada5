package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/wallplan/internal/blocks"
	"github.com/MeKo-Tech/wallplan/internal/i18n"
	"github.com/MeKo-Tech/wallplan/internal/layout"
)

// Format is an output serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts json, yaml/yml, text/txt and csv.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// ToJSON serializes a result to pretty JSON.
func ToJSON(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONBatch serializes several results to pretty JSON.
func ToJSONBatch(results []*Result) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAML serializes a result to YAML.
func ToYAML(res *Result) (string, error) {
	if res == nil || res.Layout == nil {
		return "", errors.New("nil result")
	}
	out := *res
	l := *res.Layout
	l.Normalize()
	out.Layout = &l
	b, err := yaml.Marshal(&out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToText renders a short human-readable report in lang.
func ToText(res *Result, lang string) (string, error) {
	if res == nil || res.Layout == nil {
		return "", errors.New("nil result")
	}
	l := res.Layout
	unit := "px"
	if l.Scale.Calibrated() {
		unit = "cm"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s × %s %s\n", i18n.T(lang, "dimensions"), num(l.Wall.W), num(l.Wall.H), unit)
	fmt.Fprintf(&sb, "%s: %s\n", i18n.T(lang, "source"), l.Source)
	fmt.Fprintf(&sb, "%s: %s %s²\n", i18n.T(lang, "wall_area"), num(l.Wall.Area()-l.OpeningArea()), unit)
	fmt.Fprintf(&sb, "%s: %d\n", i18n.T(lang, "openings"), len(l.Openings))
	for i, o := range l.Openings {
		fmt.Fprintf(&sb, "  %d. %s at (%s, %s) %s × %s\n", i+1, o.Type, num(o.X), num(o.Y), num(o.W), num(o.H))
	}
	if len(l.Blocks) > 0 {
		counts := blocks.Counts(l.Blocks)
		fmt.Fprintf(&sb, "%s:\n", i18n.T(lang, "block_summary"))
		for _, k := range slices.Sorted(maps.Keys(counts)) {
			fmt.Fprintf(&sb, "  %s: %d\n", k, counts[k])
		}
	}
	if l.Approximate {
		sb.WriteString(i18n.T(lang, "approximate") + "\n")
	}
	for _, w := range res.Warnings {
		sb.WriteString("! " + w + "\n")
	}
	return sb.String(), nil
}

// ToCSV exports the wall, openings and blocks, one rectangle per row.
func ToCSV(l *layout.Layout) (string, error) {
	if l == nil {
		return "", errors.New("nil layout")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"role", "x", "y", "w", "h", "type"})
	row := func(role string, r layout.Rectangle) {
		_ = w.Write([]string{role, num(r.X), num(r.Y), num(r.W), num(r.H), string(r.Type)})
	}
	row("wall", l.Wall)
	for _, o := range l.Openings {
		row("opening", o)
	}
	for _, b := range l.Blocks {
		row("block", b)
	}
	w.Flush()
	return buf.String(), w.Error()
}

// Write serializes res in format f.
func Write(w io.Writer, res *Result, f Format, lang string) error {
	var (
		s   string
		err error
	)
	switch f {
	case FormatYAML:
		s, err = ToYAML(res)
	case FormatText:
		s, err = ToText(res, lang)
	case FormatCSV:
		if res == nil {
			return errors.New("nil result")
		}
		s, err = ToCSV(res.Layout)
	default:
		s, err = ToJSON(res)
		s += "\n"
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

// num formats v with at most two decimals.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

const validateTolerance = 1e-6

// ValidateLayout performs consistency checks on an analysis output.
func ValidateLayout(l *layout.Layout) error {
	if l == nil {
		return errors.New("nil layout")
	}
	if l.Wall.W <= 0 || l.Wall.H <= 0 {
		return fmt.Errorf("invalid wall size %vx%v", l.Wall.W, l.Wall.H)
	}
	if l.Dimensions.Width != l.Wall.W || l.Dimensions.Height != l.Wall.H {
		return fmt.Errorf("dimensions %vx%v differ from wall %vx%v",
			l.Dimensions.Width, l.Dimensions.Height, l.Wall.W, l.Wall.H)
	}
	if l.Scale.Calibrated() && *l.Scale.PixelsPerUnit <= 0 {
		return errors.New("scale must be positive")
	}
	for i, o := range l.Openings {
		if o.W <= 0 || o.H <= 0 {
			return fmt.Errorf("opening %d has non-positive size", i)
		}
		if !o.Within(l.Wall.W, l.Wall.H, validateTolerance) {
			return fmt.Errorf("opening %d leaves the wall", i)
		}
	}
	for i, b := range l.Blocks {
		if !b.Within(l.Wall.W, l.Wall.H, validateTolerance) {
			return fmt.Errorf("block %d leaves the wall", i)
		}
		inner := layout.Rectangle{
			X: b.X + validateTolerance, Y: b.Y + validateTolerance,
			W: b.W - 2*validateTolerance, H: b.H - 2*validateTolerance,
		}
		for _, o := range l.Openings {
			if inner.Overlaps(o) {
				return fmt.Errorf("block %d overlaps an opening", i)
			}
		}
	}
	return nil
}
