package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"certus/internal/app"
	"certus/internal/config"
	"certus/internal/infra/logging"

	"github.com/spf13/cobra"
)

// errNotValid is returned after a verdict other than a valid signature has
// been printed. main maps it to exit status 2.
var errNotValid = errors.New("certificate is not valid")

type cli struct {
	configPath string
	jsonOut    bool
	verbose    bool

	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:   "certus",
		Short: "Issue, sign and verify educational certificates",
		Long: `certus derives certificate ids, manages institute RSA keys and signs
certificates against the ledger configured for certusd.

Configuration comes from --config (or $CERTUS_CONFIG) overlaid with the
same environment variables certusd reads.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		c.deriveCmd(),
		c.keysCmd(),
		c.signCmd(),
		c.verifyCmd(),
		c.issueCmd(),
		c.revokeCmd(),
		c.instituteCmd(),
		c.certificateCmd(),
	)
	return root
}

// open loads configuration and builds the components. The caller closes the
// returned App.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if c.verbose {
		level = "debug"
	}
	logger := logging.New(level, "console", c.errOut)
	return app.New(ctx, cfg, logger)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
