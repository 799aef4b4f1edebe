package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/spf13/cobra"
)

// NewKeysCmd creates the signing key inspection command
func NewKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect trusted signing keys",
	}

	var flags authFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the key ids and algorithms the API trusts",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := keyProvider(flags.resolve())
			if err != nil {
				return err
			}
			keys, err := provider.KeySet(cmd.Context())
			if err != nil {
				return fmt.Errorf("load signing keys: %w", err)
			}
			return printKeys(cmd, keys)
		},
	}
	flags.bind(listCmd)
	cmd.AddCommand(listCmd)
	return cmd
}

func printKeys(cmd *cobra.Command, keys jwk.Set) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KID\tTYPE\tALG\tUSE")
	for i := 0; i < keys.Len(); i++ {
		key, ok := keys.Key(i)
		if !ok {
			continue
		}
		alg := "-"
		if a := key.Algorithm(); a != nil && a.String() != "" {
			alg = a.String()
		}
		use := key.KeyUsage()
		if use == "" {
			use = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key.KeyID(), key.KeyType(), alg, use)
	}
	return w.Flush()
}
