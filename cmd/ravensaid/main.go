// ravensaid trains the Ravenholdt classifier and scores messages with a trained checkpoint.
//
//	ravensaid [flags] train [prefix]
//	ravensaid [flags] run <checkpoint>
//	ravensaid [flags] history
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/ravensaid/ravensaid/internal/config"
	"github.com/ravensaid/ravensaid/internal/history"
	"github.com/ravensaid/ravensaid/internal/inference"
	"github.com/ravensaid/ravensaid/internal/net"
	"github.com/ravensaid/ravensaid/internal/trainer"
	"k8s.io/klog/v2"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitMissingFile = 3
)

const usageText = `Usage: ravensaid [flags] <command>

Commands:
  train [prefix]      train on the configured corpora, writing <prefix>epoch_<n>.nn every epoch
  run <checkpoint>    read messages from stdin and print how likely Ravenholdt wrote them
  history             list the training runs recorded in the configured history database

Flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// errUsage marks bad command line arguments.
var errUsage = errors.New("bad arguments")

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	defer klog.Flush()

	flags := flag.NewFlagSet("ravensaid", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flagConfig := flags.String("config", "", "TOML configuration file. Without it the corpora are read from data/.")
	flagProgress := flags.Bool("progress", isTerminal(stderr), "Show a progress bar per training epoch.")
	klog.InitFlags(flags)
	flags.Usage = func() {
		_, _ = fmt.Fprint(stderr, usageText)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	err := dispatch(flags, *flagConfig, *flagProgress, stdin, stdout, stderr)
	if err == nil {
		return exitOK
	}
	code := exitCode(err)
	if code == exitUsage {
		_, _ = fmt.Fprintf(stderr, "ravensaid: %v\n", err)
		flags.Usage()
		return code
	}
	klog.Errorf("%v", err)
	klog.V(1).Infof("%+v", err)
	return code
}

func dispatch(flags *flag.FlagSet, configPath string, progress bool, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd, rest := flags.Arg(0), flags.Args()
	if len(rest) > 0 {
		rest = rest[1:]
	}
	switch cmd {
	case "":
		return errors.Wrap(errUsage, "you need to give a command, either 'run' or 'train'")
	case "train":
		if len(rest) > 1 {
			return errors.Wrap(errUsage, "train takes at most one prefix")
		}
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if len(rest) == 1 {
			cfg.Checkpoint.Prefix = rest[0]
		}
		return train(cfg, progress, stdout, stderr)
	case "run":
		if len(rest) != 1 {
			return errors.Wrap(errUsage, "you must give the path to the model to run")
		}
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		return classify(rest[0], cfg.Network, stdin, stdout)
	case "history":
		if len(rest) != 0 {
			return errors.Wrap(errUsage, "history takes no arguments")
		}
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		return listRuns(cfg, stdout)
	}
	return errors.Wrapf(errUsage, "unknown command %q", cmd)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return exitMissingFile
	}
	return exitFailure
}

func isTerminal(w io.Writer) bool {
	return termenv.NewOutput(w).Profile != termenv.Ascii
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func train(cfg config.Config, progress bool, stdout, stderr io.Writer) error {
	var callbacks []net.Callback
	if progress {
		callbacks = append(callbacks, trainer.NewProgressBar(stderr))
	}
	result, err := trainer.Run(cfg, callbacks...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, trainer.Summary(result))
	return errors.Wrap(err, "failed to print summary")
}

func classify(path string, topo net.Topology, stdin io.Reader, stdout io.Writer) error {
	c, err := inference.Open(path, topo)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return inference.REPL(stdin, stdout, c)
}

func listRuns(cfg config.Config, stdout io.Writer) error {
	if cfg.History == "" {
		return errors.Wrap(errUsage, "no history database configured, set history in the config file")
	}
	if _, err := os.Stat(cfg.History); err != nil {
		return errors.Wrapf(err, "failed to open history %q", cfg.History)
	}
	store, err := history.Open(cfg.History)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Runs()
	if err != nil {
		return err
	}
	t := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("Run", "Started", "Prefix", "Status", "Epochs", "Last loss", "Last validation")
	for _, r := range runs {
		epochs, err := store.Epochs(r.ID)
		if err != nil {
			return err
		}
		lastLoss, lastAcc := "-", "-"
		if len(epochs) > 0 {
			last := epochs[len(epochs)-1]
			lastLoss = fmt.Sprintf("%.6f", last.Loss)
			if last.Validated > 0 {
				lastAcc = fmt.Sprintf("%.2f%%", 100*last.Accuracy())
			}
		}
		t.Row(r.ID, humanize.RelTime(r.Started, time.Now(), "ago", "from now"), r.Prefix, r.Status,
			humanize.Comma(int64(len(epochs))), lastLoss, lastAcc)
	}
	_, err = fmt.Fprintln(stdout, t.String())
	return errors.Wrap(err, "failed to print runs")
}
