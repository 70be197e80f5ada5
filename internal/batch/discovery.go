package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/utils"
)

// Options controls how directory arguments are expanded.
type Options struct {
	Recursive bool
	Include   []string
	Exclude   []string
}

// Discover expands args into the list of drawings to analyze. Files named
// directly are kept unless excluded; files found inside a directory must
// also be a supported drawing format. "-" passes through for stdin.
func Discover(args []string, opts Options) ([]string, error) {
	var files []string
	for _, arg := range args {
		if arg == "-" {
			files = append(files, arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errs.Wrap(errs.CodeInvalidInput, err, "cannot access %s", arg)
		}
		if !info.IsDir() {
			if !matchesAny(arg, opts.Exclude) {
				files = append(files, arg)
			}
			continue
		}
		found, err := discoverInDirectory(arg, opts)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, errs.New(errs.CodeInvalidInput, "no drawings found in %v", args)
	}
	return files, nil
}

// discoverInDirectory walks dir in lexical order.
func discoverInDirectory(dir string, opts Options) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.IsSupportedInput(path) && shouldIncludeFile(path, opts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return files, nil
}

func shouldIncludeFile(path string, opts Options) bool {
	if matchesAny(path, opts.Exclude) {
		return false
	}
	return len(opts.Include) == 0 || matchesAny(path, opts.Include)
}

// matchesAny matches glob patterns against the base name.
func matchesAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
