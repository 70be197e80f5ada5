package cmd

import (
	"encoding/json"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/estimate"
	"github.com/MeKo-Tech/wallplan/internal/layout"
)

func newEstimateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate [layout-file]",
		Short: "Estimate block quantities, volumes and cost for a wall",
		Long: `Estimate the blocks needed for a calibrated layout (the output of analyze or
manual, in centimetres) or for a plain wall given with --width and --height.
Opening areas are subtracted before counting. Block types come from the
built-in catalog or from a TOML, YAML or JSON file given with --catalog.

Examples:
  wallplan estimate --width 500 --height 250
  wallplan manual --width 600 --height 300 --opening 50,0,100,210 -o wall.json
  wallplan estimate wall.json --block 1 --block 2 --format text`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEstimate(cmd, args)
		},
	}

	f := cmd.Flags()
	f.Float64("width", 0, "wall width in cm, when no layout file is given")
	f.Float64("height", 0, "wall height in cm, when no layout file is given")
	f.IntSlice("block", nil, "block type IDs from the catalog (default: all)")
	f.String("catalog", "", "block catalog file (TOML, YAML or JSON)")
	f.Float64("joint", 0, "mortar joint thickness in cm (default from config)")
	f.Float64("depth", 0, "wall depth in cm (default: depth of the first block)")
	f.StringP("format", "f", "json", "output format: json, yaml or text")
	f.StringP("output", "o", "", "write the estimate to this file instead of stdout")
	return cmd
}

func (a *app) runEstimate(cmd *cobra.Command, args []string) error {
	l, err := estimateLayout(cmd, args)
	if err != nil {
		return err
	}
	types, err := a.blockTypes(cmd)
	if err != nil {
		return err
	}

	opts := a.cfg.Blocks.Estimate
	if cmd.Flags().Changed("joint") {
		opts.JointThickness, _ = cmd.Flags().GetFloat64("joint")
	}
	if cmd.Flags().Changed("depth") {
		opts.Depth, _ = cmd.Flags().GetFloat64("depth")
	}

	summary, err := estimate.EstimateLayout(l, types, opts)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	return withOutput(cmd, output, func(w io.Writer) error {
		return writeEstimate(w, summary, format, a.lang())
	})
}

func estimateLayout(cmd *cobra.Command, args []string) (*layout.Layout, error) {
	if len(args) == 1 {
		data, err := readInput(cmd, args[0])
		if err != nil {
			return nil, err
		}
		return decodeLayoutDoc(data)
	}
	w, _ := cmd.Flags().GetFloat64("width")
	h, _ := cmd.Flags().GetFloat64("height")
	if w <= 0 || h <= 0 {
		return nil, errs.New(errs.CodeInvalidDimensions,
			"estimate needs a layout file or a positive --width and --height")
	}
	return layout.FromManual(layout.ManualInput{Width: w, Height: h})
}

// blockTypes loads the catalog and keeps the IDs selected with --block.
func (a *app) blockTypes(cmd *cobra.Command) ([]estimate.BlockType, error) {
	var (
		catalog estimate.Catalog
		err     error
	)
	if path, _ := cmd.Flags().GetString("catalog"); path != "" {
		catalog, err = estimate.LoadCatalog(path)
	} else {
		catalog, err = a.cfg.Catalog()
	}
	if err != nil {
		return nil, err
	}

	ids, _ := cmd.Flags().GetIntSlice("block")
	if len(ids) == 0 {
		return catalog.Blocks, nil
	}
	types := make([]estimate.BlockType, 0, len(ids))
	for _, id := range ids {
		i := slices.IndexFunc(catalog.Blocks, func(b estimate.BlockType) bool { return b.ID == id })
		if i < 0 {
			return nil, errs.New(errs.CodeInvalidInput, "block type %d is not in the catalog", id)
		}
		types = append(types, catalog.Blocks[i])
	}
	return types, nil
}

func writeEstimate(w io.Writer, s *estimate.LayoutSummary, format, lang string) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "text", "txt":
		return writeEstimateText(w, s, lang)
	}
	return errs.New(errs.CodeInvalidInput, "unknown estimate format %q (use json, yaml or text)", format)
}
