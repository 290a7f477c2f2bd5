package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/internal/config"
	"github.com/signalsfoundry/netintent/internal/logging"
	"github.com/signalsfoundry/netintent/internal/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by the subcommands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	v       *viper.Viper
	cfgFile string
	// keys maps config keys to the flags of one subcommand.
	keys map[*cobra.Command]map[string]string
	cfg     *config.Config
	log     logging.Logger

	shutdownTracing func(context.Context) error
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, v: config.New(), log: logging.Noop(),
		keys: make(map[*cobra.Command]map[string]string)}

	root := &cobra.Command{
		Use:   "intentverify",
		Short: "Verify a network configuration against its topology intents",
		Long: `intentverify builds a topology from ground-truth descriptors, instantiates
the intents I1-I6 (underlay reachability, intra-VPN connectivity, inter-VPN
isolation, VPN route visibility, SRv6 TE policy correctness and loop-free
forwarding), evaluates each instance against the configuration under test
and reports per-category accuracy.

A dataset is a directory holding overlay, tunnel, underlay, parameter_list
and optionally config descriptors (.json, .yaml or .yml), or a single bundle
file with those keys. Without a config descriptor the ground-truth
configuration is synthesised, so a dataset verified on its own scores 1.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			observability.ShutdownWithTimeout(cmd.Context(), a.shutdownTracing, a.log)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (yaml, toml or json)")
	pf.Int("workers", 0, "concurrent intent evaluations (0 = GOMAXPROCS)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json, pretty")
	pf.String("log-backend", "slog", "log backend: slog, zap")

	root.AddCommand(
		newVerifyCmd(a),
		newValidateCmd(a),
		newInstancesCmd(a),
		newServeCmd(a),
	)
	return root
}

var persistentKeys = map[string]string{
	"workers":     "workers",
	"log.level":   "log-level",
	"log.format":  "log-format",
	"log.backend": "log-backend",
}

// bindKeys registers flags of cmd that override config keys.
func (a *app) bindKeys(cmd *cobra.Command, keys map[string]string) {
	a.keys[cmd] = keys
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.BindFlags(a.v, cmd.Flags(), persistentKeys); err != nil {
		return err
	}
	if err := config.BindFlags(a.v, cmd.Flags(), a.keys[cmd]); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	lc := cfg.Logging()
	lc.Output = a.stderr
	a.log = logging.New(lc)

	shutdown, err := observability.InitTracing(cmd.Context(), cfg.TracingSettings(), a.log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracing = shutdown
	return nil
}

// datasetPath picks the positional argument over the dataset setting.
func (a *app) datasetPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.cfg.Dataset != "" {
		return a.cfg.Dataset, nil
	}
	return "", errors.New("no dataset given: pass a path or set dataset in the config")
}

func (a *app) loadAndBuild(ctx context.Context, args []string) (*core.Dataset, *core.Topology, error) {
	path, err := a.datasetPath(args)
	if err != nil {
		return nil, nil, err
	}
	ds, err := core.LoadDataset(path)
	if err != nil {
		return nil, nil, err
	}
	topo, err := core.Build(ctx, ds, a.log)
	if err != nil {
		return ds, nil, err
	}
	return ds, topo, nil
}

// terminal reports whether stdout is an interactive terminal.
func (a *app) terminal() bool {
	f, ok := a.stdout.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printStructural lists every structural problem of err on stderr.
func (a *app) printStructural(err error) {
	problems := core.StructuralErrors(err)
	if len(problems) == 0 {
		return
	}
	fmt.Fprintf(a.stderr, "%d structural error(s):\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(a.stderr, "  %s\n", p)
	}
}
