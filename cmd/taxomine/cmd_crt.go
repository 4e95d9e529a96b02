package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kittclouds/taxomine/pkg/padic"
)

// crtCmd reconstructs an integer from residues
var crtCmd = &cobra.Command{
	Use:   "crt <residue:modulus>...",
	Short: "Combine residues with the Chinese Remainder Theorem",
	Long: `Reconstructs the unique x modulo the product of pairwise coprime moduli.

Example:
  taxomine crt 2:3 3:5     # prints 8 (mod 15)`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		residues := make([]uint64, len(args))
		moduli := make([]uint64, len(args))
		for i, arg := range args {
			r, m, ok := strings.Cut(arg, ":")
			if !ok {
				return fmt.Errorf("%q: want residue:modulus", arg)
			}
			var err error
			if residues[i], err = strconv.ParseUint(r, 10, 64); err != nil {
				return fmt.Errorf("%q: %w", arg, err)
			}
			if moduli[i], err = strconv.ParseUint(m, 10, 64); err != nil {
				return fmt.Errorf("%q: %w", arg, err)
			}
		}

		x, mod, err := padic.CRT(residues, moduli)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d (mod %d)\n", x, mod)
		return nil
	},
}
