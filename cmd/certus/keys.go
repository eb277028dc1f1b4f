package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"certus/internal/config"
	"certus/internal/domain"
	"certus/internal/infra/keys/pemstore"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (c *cli) keyStore() (*pemstore.Store, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	return pemstore.NewStore(cfg.KeysDir)
}

func (c *cli) keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage institute RSA key pairs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate <institute>",
		Short: "Create a new key pair; fails if one exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.keyStore()
			if err != nil {
				return err
			}
			if _, err := store.Generate(cmd.Context(), args[0]); err != nil {
				return err
			}
			priv, pub, err := store.KeyPaths(args[0])
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(c.out, "generated key pair for %s\n", args[0])
			fmt.Fprintf(c.out, "  private: %s\n  public:  %s\n", priv, pub)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path <institute>",
		Short: "Print the key file paths for an institute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.keyStore()
			if err != nil {
				return err
			}
			priv, pub, err := store.KeyPaths(args[0])
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(map[string]string{"private_key": priv, "public_key": pub})
			}
			fmt.Fprintln(c.out, priv)
			fmt.Fprintln(c.out, pub)
			return nil
		},
	})

	var outPath string
	export := &cobra.Command{
		Use:   "export <institute>",
		Short: "Write the public credential bundle for an institute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.keyStore()
			if err != nil {
				return err
			}
			bundle, err := store.ExportBundle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if outPath == "" {
				return c.printJSON(bundle)
			}
			data, err := json.MarshalIndent(bundle, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("write bundle: %w", err)
			}
			fmt.Fprintf(c.out, "wrote %s\n", outPath)
			return nil
		},
	}
	export.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	cmd.AddCommand(export)

	cmd.AddCommand(&cobra.Command{
		Use:   "import <bundle.json|->",
		Short: "Store another institute's public key from a credential bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var bundle domain.CredentialBundle
			if err := json.Unmarshal(data, &bundle); err != nil {
				return fmt.Errorf("%w: decode bundle: %v", domain.ErrInvalidInput, err)
			}
			store, err := c.keyStore()
			if err != nil {
				return err
			}
			if err := store.ImportBundle(cmd.Context(), bundle); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(c.out, "imported public key for %s\n", bundle.InstituteEmail)
			return nil
		},
	})
	return cmd
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
