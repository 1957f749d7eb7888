// The hlsladder command encodes a video file into an HLS adaptive bitrate
// ladder with a master playlist, a progressive MP4 and a poster image.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agleyzer/hlsladder/internal/codecs"
	"github.com/agleyzer/hlsladder/internal/config"
	"github.com/agleyzer/hlsladder/internal/failure"
	"github.com/agleyzer/hlsladder/internal/ffmpeg"
	"github.com/agleyzer/hlsladder/internal/logging"
	"github.com/agleyzer/hlsladder/internal/pipeline"
	"github.com/agleyzer/hlsladder/internal/probe"
	"github.com/agleyzer/hlsladder/internal/server"
)

const (
	version = "1.0.0"
)

// environment carries the process edges so tests can replace them.
type environment struct {
	stdout io.Writer
	stderr io.Writer
	fs     afero.Fs
	deps   func(cfg config.Config, logs *logging.Logging) pipeline.Deps
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	env := newEnvironment(os.Stdout, os.Stderr, afero.NewOsFs())
	return execute(ctx, args, env)
}

// newEnvironment wires the external tools and the real filesystem.
func newEnvironment(stdout, stderr io.Writer, fs afero.Fs) *environment {
	env := &environment{stdout: stdout, stderr: stderr, fs: fs}
	env.deps = func(cfg config.Config, logs *logging.Logging) pipeline.Deps {
		return pipeline.Deps{
			FS:        env.fs,
			Prober:    probe.FFprobe{Path: cfg.Tools.FFprobe},
			Runner:    ffmpeg.ExecRunner{Path: cfg.Tools.FFmpeg, Log: logs.ToolWriter("ffmpeg")},
			Inspector: codecs.Mp4Dump{Path: cfg.Tools.Mp4Dump},
			Logger:    logs.Logger,
			Stdout:    env.stdout,
		}
	}
	return env
}

// execute runs the command line and maps the outcome to an exit status.
func execute(ctx context.Context, args []string, env *environment) int {
	cmd := newRootCommand(env)
	cmd.SetArgs(args)
	cmd.SetOut(env.stdout)
	cmd.SetErr(env.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return failure.ExitCode(err)
	}
	return 0
}

func newRootCommand(env *environment) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "hlsladder [flags] INPUT",
		Short: "Encode a video file into an HLS adaptive bitrate ladder",
		Long: `hlsladder probes INPUT, encodes every rendition of the ladder in a single
ffmpeg run and writes a master playlist with BANDWIDTH, RESOLUTION,
CODECS and FRAME-RATE for each rendition.

Every flag can also be set in a config file or the environment. Without
--config, .hlsladder.{yaml,json,toml} is looked up in the working directory
and then in $HOME. Environment variables use the HLSLADDER_ prefix and the
flag's config key in caps, e.g. HLSLADDER_HLS_TIME or HLSLADDER_VIDEO_WIDTHS.

The precedence of the configuration values is:

- flags
- environment variables
- configuration file
- defaults`,
		Example: `  hlsladder movie.mov
  hlsladder --video-widths 1280,640 --video-bitrates 2500,800 movie.mov
  hlsladder --hls-segment-type fmp4 --output /srv/hls/movie movie.mov
  hlsladder --dry-run movie.mov`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return failure.Configf("expected exactly one input file, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			cfg.Input = args[0]

			logs := logging.New(logging.Options{
				Verbose: cfg.Verbose,
				File:    cfg.LogFile,
				Output:  env.stderr,
			})
			defer logs.Close()

			res, err := pipeline.Run(cmd.Context(), cfg, env.deps(cfg, logs))
			if err != nil {
				logs.Logger.Error("ladder failed", "kind", failure.KindOf(err), "error", err)
				return err
			}
			if !cfg.DryRun {
				fmt.Fprintln(env.stdout, res.Master)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return failure.New(failure.Configuration, "parse flags", err)
	})

	persistent := cmd.PersistentFlags()
	persistent.StringVarP(&cfgFile, "config", "c", "", "config file path")
	persistent.BoolP("verbose", "v", false, "enable debug logging and ffmpeg output")
	persistent.String("log-file", "", "also write logs to this rotating file")
	for _, name := range []string{"verbose", "log-file"} {
		// Lookup cannot fail for flags registered above.
		_ = v.BindPFlag(name, persistent.Lookup(name))
	}

	if err := config.AddFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}

	cmd.AddCommand(newServeCommand(env, v, &cfgFile))
	return cmd
}

func newServeCommand(env *environment, v *viper.Viper, cfgFile *string) *cobra.Command {
	var (
		port   int
		master string
	)

	cmd := &cobra.Command{
		Use:   "serve [flags] DIR",
		Short: "Serve a finished output directory over HTTP for playback checks",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return failure.Configf("expected exactly one directory, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if port < 1 || port > 65535 {
				return failure.Configf("port must be between 1 and 65535, got %d", port)
			}
			cfg, err := loadConfig(v, *cfgFile)
			if err != nil {
				return err
			}
			if master == "" {
				master = cfg.HLS.MasterPlaylist
			}

			dir := args[0]
			if ok, err := afero.DirExists(env.fs, dir); err != nil || !ok {
				return failure.Configf("output directory %q does not exist", dir)
			}

			logs := logging.New(logging.Options{
				Verbose: cfg.Verbose,
				File:    cfg.LogFile,
				Output:  env.stderr,
			})
			defer logs.Close()

			logs.Logger.Info("preview ready",
				"url", fmt.Sprintf("http://localhost:%d/%s", port, master),
				"health", fmt.Sprintf("http://localhost:%d/health", port),
			)
			return server.New(env.fs, dir, master, port, logs.Logger).Start(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP server port")
	cmd.Flags().StringVar(&master, "master", "", "master playlist file name (default from hls.master-playlist)")
	return cmd
}

func loadConfig(v *viper.Viper, path string) (config.Config, error) {
	if err := config.ReadConfig(v, path); err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}
