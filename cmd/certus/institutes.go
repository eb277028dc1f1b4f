package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (c *cli) instituteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "institute",
		Short: "Register, approve and inspect institutes on the ledger",
	}

	var name string
	register := &cobra.Command{
		Use:   "register <institute>",
		Short: "Create the institute key pair and record its public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.Institutes.Register(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(rec)
			}
			color.New(color.FgGreen).Fprintf(c.out, "registered %s\n", rec.Identity)
			return nil
		},
	}
	register.Flags().StringVar(&name, "name", "", "display name")
	_ = register.MarkFlagRequired("name")
	cmd.AddCommand(register)

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <institute>",
		Short: "Mark a registered institute as verified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Institutes.Approve(cmd.Context(), args[0]); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(c.out, "verified %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <institute>",
		Short: "Print the ledger record for an institute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.Institutes.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(rec)
			}
			fmt.Fprintf(c.out, "%s (%s)\n", rec.Name, rec.Identity)
			fmt.Fprintf(c.out, "  verified:      %t\n", rec.IsVerified)
			fmt.Fprintf(c.out, "  registered_at: %s\n", rec.RegisteredAt.UTC().Format(time.RFC3339))
			return nil
		},
	})
	return cmd
}
