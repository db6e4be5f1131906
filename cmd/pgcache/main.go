package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/srodi/pgcache/pkg/collector/process"
	"github.com/srodi/pgcache/pkg/config"
	"github.com/srodi/pgcache/pkg/container"
	"github.com/srodi/pgcache/pkg/errs"
	"github.com/srodi/pgcache/pkg/logger"
	"github.com/srodi/pgcache/pkg/output"
	"github.com/srodi/pgcache/pkg/pipeline"
	"github.com/srodi/pgcache/pkg/probe"
	"github.com/srodi/pgcache/pkg/report"
	"github.com/srodi/pgcache/pkg/types"
	"github.com/srodi/pgcache/pkg/ui"
)

// app carries the process-level collaborators so tests can replace them.
type app struct {
	stdout     io.Writer
	isTerminal func() bool
	containers func() (pipeline.ContainerResolver, error)
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"pid":       "pid",
	"files":     "files",
	"children":  "children",
	"docker":    "container",
	"ge":        "ge",
	"le":        "le",
	"sort":      "sort",
	"output":    "output",
	"markdown":  "markdown",
	"ranges":    "ranges",
	"summary":   "summary",
	"textfile":  "textfile",
	"proc-root": "proc_root",
	"log-level": "log_level",
	"banner":    "banner",
	"timeout":   "timeout",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// bootstrap logger for failures before the configured level is known
	if _, err := logger.Init("warn"); err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}

	a := &app{
		stdout:     os.Stdout,
		isTerminal: func() bool { return term.IsTerminal(int(os.Stdout.Fd())) },
		containers: dockerResolver,
	}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		logger.Logger(ctx).Error().Err(err).Str("kind", errs.Kind(err)).Msg("pgcache failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "pgcache [files...]",
		Short: "Report how much of each file is resident in the page cache",
		Long: `pgcache measures page cache residency of files named on the command
line, files mapped by a process (and optionally its descendants), or files
mapped inside a Docker container, translated to their host paths.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			cfg.Files = append(cfg.Files, args...)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return a.run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (default $HOME/.config/pgcache/pgcache.yaml)")
	flags.IntP("pid", "p", 0, "measure files mapped by this process")
	flags.StringSliceP("files", "f", nil, "files to measure (repeatable or comma separated)")
	flags.BoolP("children", "c", false, "include descendants of the pid or container process")
	flags.String("docker", "", "measure files mapped by this container (name or id)")
	flags.Float64("ge", 0, "keep files cached at least this percent")
	flags.Float64("le", 100, "keep files cached at most this percent")
	flags.StringP("sort", "s", "", "sort by percent: asc or desc; other values are rejected")
	flags.StringP("output", "o", string(output.FormatTable), "output format: table, markdown, json or yaml")
	flags.Bool("markdown", false, "render the table as markdown")
	flags.Bool("ranges", false, "report cached page ranges per file")
	flags.Bool("summary", false, "append totals and the host page cache share")
	flags.String("textfile", "", "also write Prometheus gauges to this textfile")
	flags.String("proc-root", types.DefaultProcRoot, "procfs mount point")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.Bool("banner", true, "show the banner on interactive table output")
	flags.Duration("timeout", config.DefaultTimeout, "abort the run after this long (0 disables)")
	bindFlags(v, flags)

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func dockerResolver() (pipeline.ContainerResolver, error) {
	cli, err := container.DockerClient()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrContainerLookup, err)
	}
	return container.NewResolver(cli), nil
}

// run measures, then writes the rendered report in one piece so a failed
// run leaves stdout empty.
func (a *app) run(ctx context.Context, cfg config.Config) error {
	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return err
	}
	ctx = logger.WithLogger(ctx, log)

	format, err := cfg.Format()
	if err != nil {
		return err
	}
	order, err := cfg.SortOrder()
	if err != nil {
		return err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var probeOpts []probe.Option
	if cfg.Ranges {
		probeOpts = append(probeOpts, probe.WithRanges())
	}
	prober := probe.New(probeOpts...)

	var (
		reader     *process.Reader
		procs      pipeline.MapReader
		containers pipeline.ContainerResolver
	)
	if cfg.PID > 0 || cfg.Container != "" || cfg.Summary {
		reader, err = process.NewReader(cfg.ProcRoot)
		switch {
		case err == nil:
			log.Debug().Str("proc_root", reader.Root()).Msg("opened procfs")
			procs = reader
		case cfg.PID > 0 || cfg.Container != "":
			return err
		default:
			// only the summary's host figure depends on procfs
			log.Warn().Err(err).Msg("procfs unavailable, summary omits host page cache")
		}
	}
	if cfg.Container != "" {
		containers, err = a.containers()
		if err != nil {
			return err
		}
	}

	stats, err := pipeline.New(prober, procs, containers).Run(ctx, pipeline.Options{
		PID:       cfg.PID,
		Container: cfg.Container,
		Children:  cfg.Children,
		Files:     cfg.Files,
		Range:     cfg.Range(),
		Sort:      order,
	})
	if err != nil {
		return err
	}
	log.Debug().Int("files", len(stats)).Msg("measured")

	var summary *report.Summary
	if cfg.Summary {
		var hostCached uint64
		if reader != nil {
			if hostCached, err = reader.PageCacheBytes(); err != nil {
				log.Warn().Err(err).Msg("host page cache size unavailable")
			}
		}
		s := report.Summarize(stats, prober.PageSize(), hostCached)
		summary = &s
	}

	if cfg.Textfile != "" {
		if err := output.WriteTextfile(cfg.Textfile, stats); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if cfg.Banner && format == output.FormatTable && a.isTerminal() {
		buf.WriteString(ui.Banner())
	}
	if err := output.Render(&buf, format, stats, summary); err != nil {
		return err
	}
	_, err = a.stdout.Write(buf.Bytes())
	return err
}
