package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/wallplan/internal/config"
	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/i18n"
	"github.com/MeKo-Tech/wallplan/internal/version"
)

// annotationLenient marks commands that load the configuration without
// validating it, so a broken file can still be inspected or replaced.
const annotationLenient = "lenient-config"

// Exit codes by error category.
const (
	exitFailure   = 1
	exitInput     = 2
	exitDetection = 3
)

// app is the state shared by the commands of one command tree.
type app struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// NewRootCommand builds the wallplan command tree. Each tree has its own
// viper instance, so trees built in tests do not share flag state.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{loader: config.NewLoaderWithViper(viper.New())}

	root := &cobra.Command{
		Use:   "wallplan",
		Short: "Turn wall drawings into wall and opening geometry",
		Long: `wallplan reads a wall drawing (PNG, JPEG, TIFF, BMP, WebP or the first page
of a PDF), finds the wall outline and its window and door openings, and maps
them to wall-relative coordinates. Walls can also be entered by hand, split
into block courses, estimated for material and rendered as SVG schematics.

Examples:
  wallplan analyze plan.png --width 560 --height 320
  wallplan manual --width 600 --height 300 --opening 50,0,100,210,door --blocks
  wallplan estimate layout.json --format text
  wallplan render layout.json -o wall.svg
  wallplan serve --port 8080`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			slog.SetDefault(slog.New(newLogHandler(cmd.ErrOrStderr(), a.cfg)))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetVersionTemplate("wallplan {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/wallplan, /etc/wallplan)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("language", "en", "language for reports and messages (en, sr)")

	v := a.loader.GetViper()
	_ = v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log_format", pf.Lookup("log-format"))
	_ = v.BindPFlag("language", pf.Lookup("language"))

	root.AddCommand(
		newAnalyzeCmd(a),
		newManualCmd(a),
		newEstimateCmd(a),
		newRenderCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return root, a
}

// Execute runs the CLI and exits with a code that reflects the error
// category.
func Execute() {
	root, a := newRootCommand()
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return
	}
	reportError(root.ErrOrStderr(), a.lang(), err)
	os.Exit(exitCode(err))
}

func (a *app) load(cmd *cobra.Command) error {
	var err error
	if cmd.Annotations[annotationLenient] == "true" {
		a.cfg, err = a.loader.LoadWithFileWithoutValidation(a.cfgFile)
	} else {
		a.cfg, err = a.loader.LoadWithFile(a.cfgFile)
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// lang returns the configured language tag.
func (a *app) lang() string {
	if a.cfg == nil {
		return "en"
	}
	return i18n.Match(a.cfg.Language).String()
}

// reportError prints coded errors as a localized message plus detail and
// anything else verbatim.
func reportError(w io.Writer, lang string, err error) {
	var coded *errs.Error
	var oob *errs.OutOfBoundsError
	if errors.As(err, &coded) || errors.As(err, &oob) {
		printError(w, "%s", i18n.Error(lang, err))
		if errs.CategoryOf(err) != errs.CategoryInternal {
			printDetail(w, "%s", errs.UserMessage(err))
		}
		return
	}
	printError(w, "%v", err)
}

func exitCode(err error) int {
	if errs.GetCode(err) == "" {
		return exitFailure
	}
	switch errs.CategoryOf(err) {
	case errs.CategoryInput, errs.CategoryFormat:
		return exitInput
	case errs.CategoryDetection:
		return exitDetection
	default:
		return exitFailure
	}
}
