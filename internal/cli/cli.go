package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lenslesscam/lenslessgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("lensless", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Lensless - reconstruction and benchmarking for lensless camera captures.

Usage:
  lensless [options] [KEY=VALUE ...]

Arguments:
  KEY=VALUE
    Configuration overrides applied on top of the named configuration,
    e.g. reconstruction.method=apgd or files.n_files=10. A value of
    null disables the addressed component.

Options:
`)
		flagSet.PrintDefaults()
	}

	configNameFlag := flagSet.String("config-name", "", "Name of the configuration to compose from the config directory.")
	cnFlag := flagSet.String("cn", "", "Name of the configuration to compose (shorthand).")
	configDirFlag := flagSet.String("config-dir", "configs", "Directory containing the configuration files.")
	cdFlag := flagSet.String("cd", "", "Directory containing the configuration files (shorthand).")
	strictFlag := flagSet.Bool("strict", false, "Reject overrides that address keys absent from every configuration layer.")
	printConfigFlag := flagSet.Bool("print-config", false, "Print the resolved configuration as YAML and exit without running.")
	progressPortFlag := flagSet.Int("progress-port", 0, "Port for the HTTP progress server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent workers for benchmark reconstruction.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	configName := *configNameFlag
	if configName == "" {
		configName = *cnFlag
	}
	slog.Debug("Configuration name determined.", "name", configName)

	if configName == "" {
		slog.Debug("No configuration name provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	configDir := *configDirFlag
	if *cdFlag != "" {
		configDir = *cdFlag
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	// Every positional argument is an override; shape errors surface later
	// with the full resolver context, but an argument without '=' is a usage
	// mistake worth rejecting up front.
	var overrides []string
	if flagSet.NArg() > 0 {
		overrides = flagSet.Args()
	}
	for _, arg := range overrides {
		if !strings.Contains(arg, "=") {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid override %q: expected key=value", arg)}
		}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigName:   configName,
		ConfigDir:    configDir,
		Overrides:    overrides,
		Strict:       *strictFlag,
		PrintConfig:  *printConfigFlag,
		ProgressPort: *progressPortFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		WorkerCount:  *workersFlag,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
