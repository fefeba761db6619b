package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Fepozopo/nmedit/pkg/blend"
	"github.com/Fepozopo/nmedit/pkg/config"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

var commands = []struct{ key, help string }{
	{"o", "open an image"},
	{"m", "load a mask image (white = affected)"},
	{"i", "set intensity (0 to 1)"},
	{"n", "toggle noise reduction"},
	{"t", "set target color (e.g. #8080ff, flatnormal)"},
	{"p", "preview the result"},
	{"s", "save result and mask"},
	{"u", "check for updates"},
	{"h", "show this help message"},
	{"q", "quit"},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Commands available:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s  - %s\n", keyStyle.Render(c.key), c.help)
	}
}

// Options configures a terminal session.
type Options struct {
	Image     string // optional image to open at start
	Mask      string // optional mask image
	OutputDir string // empty: next to the image
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	Logger    *slog.Logger
	// Preview draws the result; PreviewImage when nil.
	Preview func(io.Writer, *Session) error
	// Update runs the update check; CheckForUpdates when nil.
	Update func(out io.Writer, confirm func(string) bool) error
}

// RunCLI runs the interactive editor until the user quits or input ends.
func RunCLI(cfg config.Config, engine *blend.Engine, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Preview == nil {
		opts.Preview = previewSession
	}
	if opts.Update == nil {
		opts.Update = CheckForUpdates
	}
	out, errw := opts.Out, opts.Err
	p := newPrompter(opts.In, out)
	s := NewSession(engine, cfg.Blend.Intensity)
	s.ReduceNoise = cfg.Blend.ReduceNoise

	fail := func(format string, args ...any) {
		fmt.Fprintln(errw, errStyle.Render(fmt.Sprintf(format, args...)))
	}
	status := func() { fmt.Fprintln(out, infoStyle.Render(s.Info())) }
	show := func() {
		if err := opts.Preview(out, s); err != nil {
			opts.Logger.Debug("preview unavailable", "err", err)
		}
		status()
	}

	if opts.Image != "" {
		if err := s.Open(opts.Image); err != nil {
			return fmt.Errorf("failed to read image %s: %w", opts.Image, err)
		}
		if opts.Mask != "" {
			if err := s.LoadMask(opts.Mask); err != nil {
				return fmt.Errorf("failed to read mask %s: %w", opts.Mask, err)
			}
		}
		show()
	}

	fmt.Fprintln(out, titleStyle.Render("Normal Map Intensity Editor"))
	usage(out)

	for {
		cmd, err := p.Line("> ")
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if cmd == "" {
			continue
		}

		switch cmd[:1] {
		case "o":
			path, _ := p.PathOrFzf("Image path (or '/' for fzf, empty to cancel): ", ".")
			if path == "" {
				fmt.Fprintln(out, "open cancelled")
				continue
			}
			if err := s.Open(path); err != nil {
				fail("failed to read image %s: %v", path, err)
				continue
			}
			fmt.Fprintln(out, okStyle.Render("Opened "+path))
			show()

		case "m":
			if s.Source == nil {
				fail("No image loaded. Press 'o' to open an image first.")
				continue
			}
			path, _ := p.PathOrFzf("Mask path (or '/' for fzf, empty to cancel): ", filepath.Dir(s.Path))
			if path == "" {
				continue
			}
			if err := s.LoadMask(path); err != nil {
				fail("failed to load mask: %v", err)
				continue
			}
			fmt.Fprintln(out, okStyle.Render("Mask "+path))
			show()

		case "i":
			v, _ := p.Line(fmt.Sprintf("Intensity [%.2f]: ", s.Intensity))
			if v == "" {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				fail("not a number: %s", v)
				continue
			}
			if err := s.SetIntensity(f); err != nil {
				fail("%v", err)
				continue
			}
			status()

		case "n":
			s.ReduceNoise = !s.ReduceNoise
			fmt.Fprintf(out, "noise reduction: %v\n", s.ReduceNoise)
			if s.ReduceNoise && !s.Engine.NoiseReductionAvailable() {
				fmt.Fprintln(out, infoStyle.Render("noise reduction is not available in this build; results are unfiltered"))
			}

		case "t":
			v, _ := p.Line(fmt.Sprintf("Target color [%s]: ", s.Engine.Target.Hex()))
			if v == "" {
				continue
			}
			if err := s.SetTarget(v); err != nil {
				fail("%v", err)
				continue
			}
			status()

		case "p":
			if s.Source == nil {
				fail("No image loaded. Press 'o' to open an image first.")
				continue
			}
			if err := opts.Preview(out, s); err != nil {
				fail("preview: %v", err)
			}

		case "s":
			if s.Source == nil {
				fail("No image loaded. Press 'o' to open an image first.")
				continue
			}
			resultPath, maskPath, err := s.Save(opts.OutputDir)
			if err != nil {
				fail("failed to save: %v", err)
				continue
			}
			opts.Logger.Info("saved", "result", resultPath, "mask", maskPath)
			fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Saved %s and %s", resultPath, maskPath)))

		case "u":
			if err := opts.Update(out, p.Confirm); err != nil {
				fail("update check error: %v", err)
			}

		case "h", "?":
			usage(out)

		case "q":
			fmt.Fprintln(out, "Exiting...")
			return nil

		default:
			fail("unknown command %q, press h for help", strings.TrimSpace(cmd))
		}
	}
}

// previewSession renders the session and draws the result on the terminal.
func previewSession(w io.Writer, s *Session) error {
	result, _, err := s.Render()
	if err != nil {
		return err
	}
	if !PreviewSupported() {
		return fmt.Errorf("terminal does not support image preview")
	}
	return PreviewImage(w, result)
}
