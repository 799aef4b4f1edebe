package commands

import (
	"fmt"
	"os"

	"github.com/benvon/drinks-api/internal/config"
	"github.com/benvon/drinks-api/internal/database"
	"github.com/benvon/drinks-api/internal/services/oidc"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the drinks-configure command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "drinks-configure",
		Short:         "Configuration tool for the Drinks API",
		Long:          "CLI tool for CORS settings, schema migrations, signing keys and test tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewCorsCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewKeysCmd())
	rootCmd.AddCommand(NewTokenCmd())
	return rootCmd
}

func openDatabase() (*database.DB, error) {
	url, err := config.DatabaseURL()
	if err != nil {
		return nil, err
	}
	db, err := database.New(url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func closeDatabase(db *database.DB) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}

// authFlags overlays command-line flags on the AUTH_* environment
type authFlags struct {
	issuer   string
	audience string
	jwksURL  string
	jwksFile string
}

func (f *authFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.issuer, "issuer", "", "Token issuer (default $AUTH_ISSUER)")
	cmd.Flags().StringVar(&f.audience, "audience", "", "Token audience (default $AUTH_AUDIENCE)")
	cmd.Flags().StringVar(&f.jwksURL, "jwks-url", "", "JWKS endpoint (default $AUTH_JWKS_URL or <issuer>/.well-known/jwks.json)")
	cmd.Flags().StringVar(&f.jwksFile, "jwks-file", "", "JWKS file, used instead of the endpoint (default $AUTH_JWKS_FILE)")
}

func (f *authFlags) resolve() config.AuthConfig {
	auth := config.AuthFromEnv()
	if f.issuer != "" {
		auth.Issuer = f.issuer
	}
	if f.audience != "" {
		auth.Audience = f.audience
	}
	if f.jwksURL != "" || f.jwksFile != "" {
		auth.JWKSURL = f.jwksURL
		auth.JWKSFile = f.jwksFile
	}
	auth.DeriveJWKSURL()
	return auth
}

// keyProvider returns the trusted keys for auth, preferring a JWKS file
func keyProvider(auth config.AuthConfig) (oidc.KeySetProvider, error) {
	switch {
	case auth.JWKSFile != "":
		return oidc.LoadKeySetFile(auth.JWKSFile)
	case auth.JWKSURL != "":
		return oidc.NewJWKSManager(auth.JWKSURL), nil
	default:
		return nil, fmt.Errorf("no signing key source: set --jwks-url, --jwks-file or --issuer")
	}
}
