package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/dudu/facemakeup/internal/camera"
	"github.com/dudu/facemakeup/internal/canvas"
	"github.com/dudu/facemakeup/internal/config"
	"github.com/dudu/facemakeup/internal/detector"
	"github.com/dudu/facemakeup/internal/pipeline"
)

// VideoOptions holds the video command flags
type VideoOptions struct {
	CameraIndex int
	InputPath   string
	OutputPath  string
	Codec       string
	Width       int
	Height      int
	FPS         float64
	MaxFrames   int
	Buffer      int
}

var videoOpts VideoOptions

var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Apply a makeup recipe to every frame of a camera or video file",
	Example: `  facemakeup video --input clip.mp4 -o out.avi --brighten mouth=1.5
  facemakeup video --camera 0 -o live.avi --max-frames 300 --brighten mouth`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runVideo(cmd.Context(), videoOpts)
	},
}

func init() {
	videoCmd.Flags().IntVar(&videoOpts.CameraIndex, "camera", -1, "Camera device index")
	videoCmd.Flags().StringVarP(&videoOpts.InputPath, "input", "i", "", "Path to input video")
	videoCmd.Flags().StringVarP(&videoOpts.OutputPath, "output", "o", "makeup.avi", "Path to output video")
	videoCmd.Flags().StringVar(&videoOpts.Codec, "codec", camera.DefaultCodec, "FourCC of the output codec")
	videoCmd.Flags().IntVar(&videoOpts.Width, "width", 1280, "Requested camera width")
	videoCmd.Flags().IntVar(&videoOpts.Height, "height", 720, "Requested camera height")
	videoCmd.Flags().Float64Var(&videoOpts.FPS, "fps", 30, "Requested camera frame rate")
	videoCmd.Flags().IntVar(&videoOpts.MaxFrames, "max-frames", 0, "Stop after this many frames (0 = until the input ends)")
	videoCmd.Flags().IntVar(&videoOpts.Buffer, "buffer", 4, "Frames buffered between stages")
	addRecipeFlags(videoCmd)

	videoCmd.MarkFlagsMutuallyExclusive("camera", "input")
	videoCmd.MarkFlagsOneRequired("camera", "input")
	rootCmd.AddCommand(videoCmd)
}

func openSource(opts VideoOptions) (*camera.Source, error) {
	if opts.InputPath != "" {
		return camera.OpenFile(opts.InputPath)
	}
	if opts.CameraIndex < 0 {
		return nil, fmt.Errorf("invalid camera index %d", opts.CameraIndex)
	}
	return camera.OpenCamera(opts.CameraIndex, opts.Width, opts.Height, opts.FPS)
}

func runVideo(ctx context.Context, opts VideoOptions) error {
	if opts.Buffer <= 0 {
		opts.Buffer = 1
	}

	recipe, err := buildRecipe()
	if err != nil {
		return err
	}

	src, err := openSource(opts)
	if err != nil {
		return err
	}
	defer src.Close()

	p, err := pipeline.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	sink, err := camera.CreateSink(opts.OutputPath, opts.Codec, src.FPS(), src.Width(), src.Height())
	if err != nil {
		return err
	}
	defer sink.Close()

	logger.WithFields(logrus.Fields{
		"source": src.Name(),
		"size":   fmt.Sprintf("%dx%d", src.Width(), src.Height()),
		"fps":    src.FPS(),
		"frames": src.FrameCount(),
		"output": opts.OutputPath,
	}).Info("Processing video")

	total := int64(src.FrameCount())
	if opts.MaxFrames > 0 && (total < 0 || int64(opts.MaxFrames) < total) {
		total = int64(opts.MaxFrames)
	}
	if total <= 0 {
		total = -1 // Trigger spinner mode
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("Processing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan gocv.Mat, opts.Buffer)
	edited := make(chan gocv.Mat, opts.Buffer)
	stats := &videoStats{}

	// read
	g.Go(func() error {
		defer close(frames)
		for n := 0; opts.MaxFrames <= 0 || n < opts.MaxFrames; n++ {
			frame := gocv.NewMat()
			ok, err := src.Read(&frame)
			if err != nil || !ok {
				frame.Close()
				return err
			}
			select {
			case frames <- frame:
			case <-gctx.Done():
				frame.Close()
				return gctx.Err()
			}
		}
		return nil
	})

	// process
	g.Go(func() error {
		defer close(edited)
		for frame := range frames {
			out, err := editFrame(p, frame, recipe, stats)
			frame.Close()
			if err != nil {
				return err
			}
			select {
			case edited <- out:
			case <-gctx.Done():
				out.Close()
				return gctx.Err()
			}
		}
		return nil
	})

	// write
	g.Go(func() error {
		for frame := range edited {
			err := sink.Write(frame)
			frame.Close()
			if err != nil {
				return err
			}
			bar.Add(1)
		}
		return nil
	})

	err = g.Wait()
	drain(frames)
	drain(edited)
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if err != nil && !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		return err
	}
	if ctx.Err() != nil {
		logger.Warn("Interrupted, finalising output")
	}

	logger.WithFields(logrus.Fields{
		"output":      opts.OutputPath,
		"frames":      sink.Count(),
		"edited":      stats.edited,
		"passthrough": stats.passthrough,
		"failures":    stats.failures,
	}).Info("Video written")
	return nil
}

type videoStats struct {
	edited      int
	passthrough int
	failures    int
}

// editFrame runs the pipeline on a copy of frame. A frame without a face
// is passed through unchanged.
func editFrame(p *pipeline.Pipeline, frame gocv.Mat, recipe []config.Step, stats *videoStats) (gocv.Mat, error) {
	c, err := canvas.FromClone(frame)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer c.Close()

	result, err := p.Process(c, recipe)
	switch {
	case errors.Is(err, detector.ErrNoFaceDetected):
		stats.passthrough++
	case err != nil:
		return gocv.Mat{}, err
	default:
		stats.edited++
		stats.failures += len(result.Failures)
	}

	out := gocv.NewMat()
	if err := c.CopyTo(&out); err != nil {
		out.Close()
		return gocv.Mat{}, err
	}
	return out, nil
}

func drain(ch <-chan gocv.Mat) {
	for m := range ch {
		m.Close()
	}
}
