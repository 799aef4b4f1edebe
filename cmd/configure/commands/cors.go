package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/benvon/drinks-api/internal/database"
	"github.com/benvon/drinks-api/internal/models"
	"github.com/spf13/cobra"
)

// NewCorsCmd creates the cors command with list and set subcommands
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage the drinks API CORS policy",
		Long:  "Show or replace the browser origins allowed to call the drinks API. The policy lives in the cors_policy table.",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the stored CORS policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			p, err := database.NewCorsPolicyRepository(db).Get(cmd.Context())
			if err != nil {
				return err
			}
			printCorsPolicy(cmd, p)
			return nil
		},
	}
}

func printCorsPolicy(cmd *cobra.Command, p *models.CorsPolicy) {
	out := cmd.OutOrStdout()
	if p == nil {
		fmt.Fprintf(out, "No CORS policy stored for %s; the server falls back to FRONTEND_URL. Use 'cors set' to add one.\n", database.CorsService)
		return
	}
	fmt.Fprintf(out, "CORS policy for %s (updated %s):\n", p.Service, p.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "  Allowed origins: %s\n", strings.Join(p.AllowedOrigins, ", "))
	fmt.Fprintf(out, "  Allow credentials: %v\n", p.AllowCredentials)
	fmt.Fprintf(out, "  Max-Age: %s\n", p.MaxAge)
}

func newCorsSetCmd() *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the stored CORS policy",
		Long:  "Replace the drinks API's allowed browser origins (comma-separated). Running servers pick the change up within a minute.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := corsPolicyFromFlags(origins, allowCreds, maxAge)
			if err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			if err := database.NewCorsPolicyRepository(db).Set(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "CORS policy updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", false, "Allow credentials")
	cmd.Flags().DurationVar(&maxAge, "max-age", models.DefaultCorsMaxAge, "How long browsers may cache a preflight response")
	return cmd
}

func corsPolicyFromFlags(origins string, allowCreds bool, maxAge time.Duration) (*models.CorsPolicy, error) {
	p := &models.CorsPolicy{
		Service:          database.CorsService,
		AllowedOrigins:   models.ParseOrigins(origins),
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid --origins/--allow-credentials/--max-age: %w", err)
	}
	return p, nil
}
