package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	optionNameAdapter     = "adapter"
	optionNameInputFormat = "input-format"
	optionNameFormat      = "format"
	optionNameVerbosity   = "verbosity"
	optionNameIDProperty  = "id"
	optionNameField       = "field"
	optionNameValue       = "value"
	optionNameRows        = "rows"
	optionNameEncoding    = "encoding"
)

// Version is set at build time.
var Version = "dev"

func init() {
	cobra.EnableCommandSorting = false
}

type command struct {
	root    *cobra.Command
	config  *viper.Viper
	cfgFile string
	homeDir string
}

type option func(*command)

// WithArgs sets the command line arguments, for tests.
func WithArgs(a ...string) option {
	return func(c *command) {
		c.root.SetArgs(a)
	}
}

// WithOutput redirects standard and error output.
func WithOutput(w io.Writer) option {
	return func(c *command) {
		c.root.SetOut(w)
		c.root.SetErr(w)
	}
}

// WithHomeDir overrides the directory searched for the config file.
func WithHomeDir(dir string) option {
	return func(c *command) {
		c.homeDir = dir
	}
}

func newCommand(opts ...option) (c *command, err error) {
	c = &command{
		root: &cobra.Command{
			Use:           "rsetctl",
			Short:         "inspect record set payloads",
			SilenceErrors: true,
			SilenceUsage:  true,
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				if err := c.initConfig(); err != nil {
					return err
				}
				return c.config.BindPFlags(cmd.Flags())
			},
		},
	}

	for _, o := range opts {
		o(c)
	}

	if err := c.setHomeDir(); err != nil {
		return nil, err
	}

	c.initGlobalFlags()
	c.initInspectCmd()
	c.initLookupCmd()
	c.initEnvelopeCmd()
	c.initVersionCmd()
	return c, nil
}

func (c *command) Execute() (err error) {
	return c.root.Execute()
}

// Execute parses command line arguments and runs appropriate functions.
func Execute() (err error) {
	c, err := newCommand()
	if err != nil {
		return err
	}
	return c.Execute()
}

func (c *command) initGlobalFlags() {
	globalFlags := c.root.PersistentFlags()
	globalFlags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.rsetctl.yaml)")
	globalFlags.String(optionNameAdapter, "auto", "adapter of the payload: auto, plain or columnar")
	globalFlags.String(optionNameInputFormat, "", "payload encoding: json or msgpack (default by file extension)")
	globalFlags.String(optionNameFormat, "", "YAML file declaring fields over the inferred format")
	globalFlags.String(optionNameIDProperty, "", "ID property of the record set")
	globalFlags.String(optionNameVerbosity, "warn", "log verbosity level 0=silent, 1=error, 2=warn, 3=info, 4=debug")
}

func (c *command) initConfig() (err error) {
	config := viper.New()
	configName := ".rsetctl"
	if c.cfgFile != "" {
		config.SetConfigFile(c.cfgFile)
	} else {
		config.AddConfigPath(c.homeDir)
		config.SetConfigName(configName)
	}

	config.SetEnvPrefix("rset")
	config.AutomaticEnv()
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := config.ReadInConfig(); err != nil {
		var e viper.ConfigFileNotFoundError
		if !errors.As(err, &e) {
			return err
		}
	}
	c.config = config
	return nil
}

func (c *command) setHomeDir() (err error) {
	if c.homeDir != "" {
		return
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	c.homeDir = filepath.Clean(dir)
	return nil
}

func newLogger(cmd *cobra.Command, verbosity string) (*slog.Logger, error) {
	var level slog.Level
	switch verbosity {
	case "0", "silent":
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	case "1", "error":
		level = slog.LevelError
	case "2", "warn":
		level = slog.LevelWarn
	case "3", "info":
		level = slog.LevelInfo
	case "4", "debug":
		level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("unknown verbosity level %q", verbosity)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}
