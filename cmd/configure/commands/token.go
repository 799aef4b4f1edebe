package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/benvon/drinks-api/internal/apierror"
	"github.com/benvon/drinks-api/internal/services/oidc"
	"github.com/spf13/cobra"
)

// NewTokenCmd creates the token command with fetch and verify subcommands
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain and check bearer tokens",
	}
	cmd.AddCommand(newTokenFetchCmd())
	cmd.AddCommand(newTokenVerifyCmd())
	return cmd
}

func newTokenFetchCmd() *cobra.Command {
	var issuer, audience, clientID, clientSecret, tokenURL string
	var scopes []string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Request an access token with the client credentials grant",
		Long:  "Request an access token from the issuer for a machine-to-machine client. Useful for exercising the API by hand.",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := (&authFlags{issuer: issuer, audience: audience}).resolve()
			if clientID == "" {
				clientID = auth.ClientID
			}
			if clientSecret == "" {
				clientSecret = auth.ClientSecret
			}

			client, err := oidc.NewClient(oidc.ClientConfig{
				Issuer:       auth.Issuer,
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Audience:     auth.Audience,
				Scopes:       scopes,
				TokenURL:     tokenURL,
			})
			if err != nil {
				return err
			}
			token, err := client.FetchToken(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "", "Token issuer (default $AUTH_ISSUER)")
	cmd.Flags().StringVar(&audience, "audience", "", "API audience (default $AUTH_AUDIENCE)")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Client id (default $AUTH_CLIENT_ID)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "Client secret (default $AUTH_CLIENT_SECRET)")
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "Token endpoint (default <issuer>/oauth/token)")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scopes to request")
	return cmd
}

func newTokenVerifyCmd() *cobra.Command {
	var flags authFlags
	var algorithm, require string

	cmd := &cobra.Command{
		Use:   "verify [token|-]",
		Short: "Verify a token the way the API does and print its claims",
		Long:  "Run the API's verification pipeline offline. The token is read from the argument, or from stdin when it is '-' or omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := tokenArg(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			auth := flags.resolve()
			if algorithm != "" {
				auth.Algorithm = algorithm
			}
			if err := auth.Validate(); err != nil {
				return err
			}
			keys, err := keyProvider(auth)
			if err != nil {
				return err
			}
			verifier, err := oidc.NewVerifier(keys, auth.Issuer, auth.Audience, auth.Algorithm,
				oidc.WithAcceptableSkew(auth.ClockSkew),
			)
			if err != nil {
				return err
			}

			claims, err := verifier.Verify(cmd.Context(), raw)
			if err == nil && require != "" {
				err = oidc.Authorize(require, claims)
			}
			if err != nil {
				var authErr *apierror.AuthError
				if errors.As(err, &authErr) {
					return fmt.Errorf("token rejected (%s, HTTP %d): %w", authErr.Kind, authErr.Status(), err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Token is valid")
			fmt.Fprintf(out, "  Subject: %s\n", claims.Subject)
			fmt.Fprintf(out, "  Issuer: %s\n", claims.Issuer)
			fmt.Fprintf(out, "  Audience: %s\n", strings.Join(claims.Audience, ", "))
			fmt.Fprintf(out, "  Expires: %s\n", claims.ExpiresAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "  Permissions: %s\n", strings.Join(claims.Permissions(), " "))
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Accepted signature algorithm (default $AUTH_ALGORITHM or RS256)")
	cmd.Flags().StringVar(&require, "require", "", "Also require this permission, e.g. post:drinks")
	return cmd
}

func tokenArg(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return strings.TrimSpace(args[0]), nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token from stdin: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("no token given")
	}
	return token, nil
}
