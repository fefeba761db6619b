package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"

	"github.com/Fepozopo/nmedit/pkg/cli"
	"github.com/Fepozopo/nmedit/pkg/config"
	"github.com/Fepozopo/nmedit/pkg/server"
)

const usage = `Usage: nmedit <command> [flags]

Commands:
  serve                      run the browser editor (default)
  edit [flags] image [mask]  edit one image in the terminal
  batch [flags] images...    apply one mask to many images
  version                    print the version

Run "nmedit <command> -h" for the flags of a command.
`

// common holds the flags every command accepts.
type common struct {
	configPath string
	envFile    string
	debug      bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to a YAML or TOML configuration file")
	fs.StringVar(&c.envFile, "env", ".env", "path to .env file (ignored if missing)")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
}

// load builds the configuration: defaults, then the file, then NMEDIT_*
// variables, then flags.
func (c *common) load() (config.Config, error) {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return config.Config{}, err
	}
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}
	if c.debug {
		cfg.Debug = true
	}
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, args)
	case "edit":
		err = runEdit(args)
	case "batch":
		err = runBatch(ctx, args)
	case "version":
		fmt.Println(cli.Version)
	case "help":
		fmt.Fprint(os.Stderr, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var c common
	c.register(fs)
	addr := fs.String("addr", "", "listen address (overrides config)")
	dir := fs.String("dir", "", "folder of images to offer (overrides config)")
	out := fs.String("out", "", "folder Save writes into (overrides config)")
	open := fs.Bool("open", false, "open the editor in the default browser")
	_ = fs.Parse(args)

	cfg, err := c.load()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dir != "" {
		cfg.ImageDir = *dir
	}
	if *out != "" {
		cfg.OutputDir = *out
	}
	if *open {
		cfg.OpenBrowser = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	engine, err := cfg.Engine()
	if err != nil {
		return err
	}
	srv, err := server.New(cfg, engine, slog.Default())
	if err != nil {
		return err
	}
	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	if cfg.OpenBrowser {
		url := "http://" + l.Addr().String() + "/"
		if err := browser.OpenURL(url); err != nil {
			slog.Warn("could not open browser", "url", url, "err", err)
		}
	}
	return srv.Serve(ctx, l)
}

func runEdit(args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	var c common
	c.register(fs)
	out := fs.String("out", "", "folder to save into (default: next to the image)")
	_ = fs.Parse(args)

	cfg, err := c.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	engine, err := cfg.Engine()
	if err != nil {
		return err
	}
	opts := cli.Options{
		OutputDir: *out,
		In:        os.Stdin,
		Out:       os.Stdout,
		Err:       os.Stderr,
		Logger:    slog.Default(),
	}
	if fs.NArg() > 0 {
		opts.Image = fs.Arg(0)
	}
	if fs.NArg() > 1 {
		opts.Mask = fs.Arg(1)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = cfg.OutputDir
	}
	return cli.RunCLI(cfg, engine, opts)
}

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	var c common
	c.register(fs)
	mask := fs.String("mask", "", "mask image applied to every image (default: whole image)")
	out := fs.String("out", "", "output folder (default: next to each image)")
	intensity := fs.Float64("intensity", -1, "blend intensity in [0,1] (default from config)")
	workers := fs.Int("workers", 0, "parallel workers (default from config, else one per CPU)")
	_ = fs.Parse(args)

	cfg, err := c.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("batch: no images given")
	}
	engine, err := cfg.Engine()
	if err != nil {
		return err
	}
	opts := cli.BatchOptions{
		Engine:      engine,
		Mask:        *mask,
		Images:      fs.Args(),
		OutputDir:   *out,
		Intensity:   cfg.Blend.Intensity,
		ReduceNoise: cfg.Blend.ReduceNoise,
		Workers:     cfg.Batch.Workers,
		Logger:      slog.Default(),
	}
	if *intensity >= 0 {
		opts.Intensity = *intensity
	}
	if *workers > 0 {
		opts.Workers = *workers
	}
	if opts.OutputDir == "" {
		opts.OutputDir = cfg.OutputDir
	}

	report, err := cli.RunBatch(ctx, opts)
	for _, r := range report.Results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", r.Image, r.Err)
		} else {
			fmt.Printf("ok   %s -> %s\n", r.Image, r.ResultPath)
		}
	}
	if err != nil {
		return err
	}
	if n := len(report.Failed()); n > 0 {
		return fmt.Errorf("%d of %d images failed", n, len(report.Results))
	}
	return nil
}
