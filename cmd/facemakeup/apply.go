package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dudu/facemakeup/internal/canvas"
	"github.com/dudu/facemakeup/internal/pipeline"
)

var applyOutput string

var applyCmd = &cobra.Command{
	Use:   "apply IMAGE",
	Short: "Apply a makeup recipe to the faces in an image",
	Example: `  facemakeup apply face.jpg -o out.jpg --brighten mouth=1.8
  facemakeup apply face.jpg -o out.png --resize left_eye=70x30 --resize right_eye=70x30`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runApply(cmd.Context(), args[0])
	},
}

func init() {
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "Path to output image")
	addRecipeFlags(applyCmd)

	applyCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(applyCmd)
}

func runApply(ctx context.Context, input string) error {
	inAbs, _ := filepath.Abs(input)
	outAbs, _ := filepath.Abs(applyOutput)
	if inAbs == outAbs {
		return fmt.Errorf("input and output paths must be different")
	}

	recipe, err := buildRecipe()
	if err != nil {
		return err
	}

	c, err := canvas.Load(input)
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := pipeline.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := p.Process(c, recipe)
	if err != nil {
		return err
	}

	if err := c.Save(applyOutput); err != nil {
		return err
	}

	timing := p.LastTiming()
	logger.WithFields(logrus.Fields{
		"output":    applyOutput,
		"faces":     result.Faces,
		"applied":   result.Applied,
		"failures":  len(result.Failures),
		"detection": timing.Detection,
		"edit":      timing.Edit,
		"total":     timing.Total,
	}).Info("Image written")
	return nil
}
