// Package models locates the Tesseract language data used to read
// dimension labels from drawings.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// DefaultModelsDir is the models directory below the project root.
	DefaultModelsDir = "models"
	// TypeTessdata is the subdirectory holding *.traineddata files.
	TypeTessdata = "tessdata"
	// DefaultLanguage is the language used for dimension labels.
	DefaultLanguage = "eng"

	// EnvModelsDir overrides the models directory.
	EnvModelsDir = "WALLPLAN_MODELS_DIR"
	// EnvTessdata is Tesseract's own data directory variable.
	EnvTessdata = "TESSDATA_PREFIX"

	trainedDataExt = ".traineddata"
)

// systemTessdataDirs are the usual package install locations.
var systemTessdataDirs = []string{
	"/usr/share/tesseract-ocr/5/tessdata",
	"/usr/share/tesseract-ocr/4.00/tessdata",
	"/usr/share/tessdata",
	"/usr/local/share/tessdata",
	"/opt/homebrew/share/tessdata",
}

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory.
// Priority: 1. explicit modelsDir, 2. environment variable, 3. project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// TrainedDataFile returns the file name of lang's language data.
func TrainedDataFile(lang string) string {
	return lang + trainedDataExt
}

// TessdataCandidates lists the directories searched for language data, in
// order: the models directory, $TESSDATA_PREFIX, then system locations.
func TessdataCandidates(modelsDir string) []string {
	dirs := []string{filepath.Join(GetModelsDir(modelsDir), TypeTessdata)}
	if env := os.Getenv(EnvTessdata); env != "" {
		dirs = append(dirs, env)
	}
	return append(dirs, systemTessdataDirs...)
}

// TessdataDir returns the first candidate directory that holds lang's
// language data, or "" to leave the choice to Tesseract.
func TessdataDir(modelsDir, lang string) string {
	if lang == "" {
		lang = DefaultLanguage
	}
	for _, dir := range TessdataCandidates(modelsDir) {
		if ValidateModelExists(filepath.Join(dir, TrainedDataFile(lang))) == nil {
			return dir
		}
	}
	return ""
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListLanguages returns the sorted languages with data in dir.
func ListLanguages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var langs []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), trainedDataExt); ok && !e.IsDir() && name != "" {
			langs = append(langs, name)
		}
	}
	slices.Sort(langs)
	return langs
}
