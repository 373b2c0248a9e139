package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dudu/facemakeup/internal/config"
)

// Version is the application version.
const Version = "0.1.0"

var (
	configPath string
	debugMode  bool
	padding    int
	kernelRate int
	maxFaces   int

	brightenSpecs []string
	resizeSpecs   []string

	// set by PersistentPreRunE
	cfg    config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "facemakeup",
	Short:         "Landmark-driven makeup for facial features",
	Version:       Version,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = initLogger(debugMode)

		loaded := config.Default()
		if configPath != "" {
			var err error
			if loaded, err = config.Load(configPath); err != nil {
				return err
			}
		}

		flags := cmd.Flags()
		if flags.Changed("padding") {
			loaded.Makeup.BoxPadding = padding
		}
		if flags.Changed("rate") {
			loaded.Makeup.KernelRate = kernelRate
		}
		if flags.Changed("max-faces") {
			loaded.Makeup.MaxFaces = maxFaces
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		logger.WithFields(logrus.Fields{
			"version":    Version,
			"debug_mode": debugMode,
			"config":     configPath,
		}).Debug("Configuration loaded")
		return nil
	},
}

func init() {
	defaults := config.Default().Makeup
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().IntVar(&padding, "padding", defaults.BoxPadding, "Horizontal padding added to each feature box")
	rootCmd.PersistentFlags().IntVar(&kernelRate, "rate", defaults.KernelRate, "Kernel rate divisor (larger gives a sharper mask)")
	rootCmd.PersistentFlags().IntVar(&maxFaces, "max-faces", defaults.MaxFaces, "Maximum number of faces to edit")
}

// initLogger initializes and configures the logger
func initLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}

// addRecipeFlags registers the edit flags shared by apply and video
func addRecipeFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&brightenSpecs, "brighten", nil, "Brighten a feature, FEATURE[=RATE] (repeatable)")
	cmd.Flags().StringArrayVar(&resizeSpecs, "resize", nil, "Resize a feature, FEATURE=WxH (repeatable)")
}

// buildRecipe appends the flag steps to the configured recipe
func buildRecipe() ([]config.Step, error) {
	recipe := append([]config.Step(nil), cfg.Recipe...)

	var errs []error
	for _, arg := range brightenSpecs {
		step, err := config.ParseStep("brighten", arg, cfg.Makeup.BrightenRate)
		if err != nil {
			errs = append(errs, fmt.Errorf("--brighten %s: %w", arg, err))
			continue
		}
		recipe = append(recipe, step)
	}
	for _, arg := range resizeSpecs {
		step, err := config.ParseStep("resize", arg, cfg.Makeup.BrightenRate)
		if err != nil {
			errs = append(errs, fmt.Errorf("--resize %s: %w", arg, err))
			continue
		}
		recipe = append(recipe, step)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if len(recipe) == 0 {
		return nil, errors.New("nothing to do: pass --brighten or --resize, or set a recipe in the config")
	}
	return recipe, nil
}
