// Package cli parses panelfront arguments into a command invocation.
package cli

import (
	"bytes"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/rbright/panelfront/internal/config"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// Parsed is one resolved invocation.
type Parsed struct {
	Command    Command
	ConfigPath string
	// Overrides holds config keys set explicitly by flags.
	Overrides map[string]any
	// Help is the rendered help text when Command is CommandHelp.
	Help string
}

// UsageError marks argument errors that should exit with status 2.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// Parse resolves args without running anything.
func Parse(args []string) (Parsed, error) {
	var parsed Parsed
	var out bytes.Buffer

	root := newRootCmd(&parsed)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)

	if err := root.Execute(); err != nil {
		return Parsed{}, &UsageError{Err: err}
	}

	// cobra answers -h, --help, and `help` itself without running any command.
	if parsed.Command == "" {
		parsed.Command = CommandHelp
		parsed.Help = out.String()
	}
	return parsed, nil
}

// HelpText renders root usage for error output.
func HelpText() string {
	var parsed Parsed
	return newRootCmd(&parsed).UsageString()
}

// IsUsageError reports whether err came from argument parsing.
func IsUsageError(err error) bool {
	var usageErr *UsageError
	return errors.As(err, &usageErr)
}

func newRootCmd(parsed *Parsed) *cobra.Command {
	var (
		configPath  string
		host        string
		port        int
		showVersion bool
	)

	root := &cobra.Command{
		Use:   "panelfront",
		Short: "Panel front end: live transcript and paced AI reply",
		Long: "panelfront joins a panel coordinator as the front-end module, shows the live user " +
			"transcription, and reveals the AI reply in step with synthesized speech.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				parsed.Command = CommandVersion
				return nil
			}
			parsed.Command = CommandRun
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/panelfront/config.toml)")
	flags.StringVar(&host, "host", "", "coordinator host (overrides coordinator.host)")
	flags.IntVar(&port, "port", 0, "coordinator port (overrides coordinator.port)")
	root.Flags().BoolVar(&showVersion, "version", false, "show version")

	// Flags are resolved after cobra parsed them, whichever command ran.
	root.PersistentPostRun = func(cmd *cobra.Command, _ []string) {
		parsed.ConfigPath = configPath
		parsed.Overrides = map[string]any{}
		if cmd.Flags().Changed("host") {
			parsed.Overrides[config.KeyCoordinatorHost] = host
		}
		if cmd.Flags().Changed("port") {
			parsed.Overrides[config.KeyCoordinatorPort] = port
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "doctor",
			Short: "Run configuration and coordinator checks",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				parsed.Command = CommandDoctor
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				parsed.Command = CommandVersion
				return nil
			},
		},
	)

	return root
}
