package estimate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/wallplan/internal/errs"
)

// BlockType is one entry of a block catalog. Sizes are in centimetres,
// Density in kg/m³.
type BlockType struct {
	ID      int     `toml:"id" yaml:"id" json:"id"`
	Name    string  `toml:"name" yaml:"name" json:"name"`
	Width   float64 `toml:"width" yaml:"width" json:"width"`
	Height  float64 `toml:"height" yaml:"height" json:"height"`
	Depth   float64 `toml:"depth" yaml:"depth" json:"depth"`
	Price   float64 `toml:"price" yaml:"price" json:"price"`
	Density float64 `toml:"density" yaml:"density" json:"density"`
}

// Dimensions renders the block size as WxHxD.
func (b BlockType) Dimensions() string {
	return fmt.Sprintf("%gx%gx%g", b.Width, b.Height, b.Depth)
}

// Validate reports a block with non-positive face size or negative price.
func (b BlockType) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return errs.New(errs.CodeInvalidDimensions, "block %d: width and height must be positive", b.ID)
	}
	if b.Depth < 0 || b.Price < 0 || b.Density < 0 {
		return errs.New(errs.CodeInvalidDimensions, "block %d: depth, price and density must not be negative", b.ID)
	}
	return nil
}

// Catalog is a list of block types.
type Catalog struct {
	Blocks []BlockType `toml:"blocks" yaml:"blocks" json:"blocks"`
}

// Validate checks every block and rejects an empty catalog.
func (c Catalog) Validate() error {
	if len(c.Blocks) == 0 {
		return errs.New(errs.CodeInvalidInput, "block catalog is empty")
	}
	for _, b := range c.Blocks {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DefaultCatalog returns the built-in block types.
func DefaultCatalog() Catalog {
	return Catalog{Blocks: []BlockType{
		{ID: 1, Name: "Standard block", Width: 50, Height: 25, Depth: 20, Price: 2.80, Density: 1400},
		{ID: 2, Name: "Half block", Width: 25, Height: 25, Depth: 20, Price: 1.60, Density: 1400},
		{ID: 3, Name: "Partition block", Width: 50, Height: 25, Depth: 12, Price: 1.90, Density: 1200},
	}}
}

// ParseCatalog decodes a catalog in the given format: toml, yaml or json.
func ParseCatalog(data []byte, format string) (Catalog, error) {
	var c Catalog
	var err error
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "toml":
		err = toml.Unmarshal(data, &c)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &c)
	case "json":
		err = json.Unmarshal(data, &c)
	default:
		return c, errs.New(errs.CodeUnsupportedFormat, "unknown catalog format %q", format)
	}
	if err != nil {
		return c, errs.Wrap(errs.CodeInvalidInput, err, "cannot parse %s catalog", format)
	}
	return c, c.Validate()
}

// LoadCatalog reads a catalog file; the format follows the extension.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-selected catalog
	if err != nil {
		return Catalog{}, errs.Wrap(errs.CodeInvalidInput, err, "cannot read catalog %s", path)
	}
	return ParseCatalog(data, filepath.Ext(path))
}
