package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/remeh/sizedwaitgroup"

	"github.com/Fepozopo/nmedit/pkg/blend"
	"github.com/Fepozopo/nmedit/pkg/imageio"
)

// BatchOptions applies one mask to many images.
type BatchOptions struct {
	Engine      *blend.Engine
	Mask        string // mask image path; empty selects every pixel
	Images      []string
	OutputDir   string // empty: next to each image
	Intensity   float64
	ReduceNoise bool
	Workers     int // <= 0: one per CPU
	Logger      *slog.Logger
}

// BatchResult is the outcome for one image.
type BatchResult struct {
	Image      string
	ResultPath string
	MaskPath   string
	Err        error
}

// BatchReport lists per-image outcomes in input order.
type BatchReport struct {
	Results []BatchResult
}

// Failed returns the results that carry an error.
func (r BatchReport) Failed() []BatchResult {
	var out []BatchResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// RunBatch processes every image with a bounded number of workers. A failing
// image does not stop the others; cancelling ctx stops images that have not
// started yet. The returned error is only for setup problems or cancellation.
func RunBatch(ctx context.Context, opts BatchOptions) (BatchReport, error) {
	if opts.Engine == nil {
		return BatchReport{}, errors.New("batch: nil engine")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := checkIntensity(opts.Intensity); err != nil {
		return BatchReport{}, err
	}
	var mask *blend.Mask
	if opts.Mask != "" {
		src, err := imageio.Load(opts.Mask)
		if err != nil {
			return BatchReport{}, fmt.Errorf("batch: mask: %w", err)
		}
		mask = blend.MaskFromGray(src.Image)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]BatchResult, len(opts.Images))
	var mu sync.Mutex
	wg := sizedwaitgroup.New(workers)
	for i, path := range opts.Images {
		err := ctx.Err()
		if err == nil {
			err = wg.AddWithContext(ctx)
		}
		if err != nil {
			for j := i; j < len(opts.Images); j++ {
				results[j] = BatchResult{Image: opts.Images[j], Err: err}
			}
			break
		}
		go func(i int, path string) {
			defer wg.Done()
			res := processOne(opts, mask, path)
			if res.Err != nil {
				opts.Logger.Warn("batch image failed", "image", path, "err", res.Err)
			} else {
				opts.Logger.Debug("batch image done", "image", path, "result", res.ResultPath)
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
		}(i, path)
	}
	wg.Wait()

	report := BatchReport{Results: results}
	opts.Logger.Info("batch finished", "images", len(results), "failed", len(report.Failed()), "workers", workers)
	return report, ctx.Err()
}

func processOne(opts BatchOptions, mask *blend.Mask, path string) BatchResult {
	res := BatchResult{Image: path}
	s := NewSession(opts.Engine, opts.Intensity)
	s.ReduceNoise = opts.ReduceNoise
	if err := s.Open(path); err != nil {
		res.Err = err
		return res
	}
	if mask != nil {
		s.mask = mask
		s.MaskPath = opts.Mask
	}
	res.ResultPath, res.MaskPath, res.Err = s.Save(opts.OutputDir)
	return res
}
