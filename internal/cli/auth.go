package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session token",
	}

	cmd.AddCommand(newLoginGuestCmd())
	cmd.AddCommand(newLoginOAuthCmd())

	return cmd
}

func login(cmd *cobra.Command, req map[string]string) error {
	var result AuthResult
	if err := client.Post(cmd.Context(), "/api/v1/auth/login", req, &result); err != nil {
		return err
	}

	// Save token
	if err := cfg.SaveToken(result.SessionToken); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	output(cmd).Print(result)
	return nil
}

func newLoginGuestCmd() *cobra.Command {
	var name, password string

	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Sign in as a guest, claiming the name with an optional password",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"provider": "guest", "display_name": name}
			if password != "" {
				req["password"] = password
			}
			return login(cmd, req)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password for the name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newLoginOAuthCmd() *cobra.Command {
	var provider, idToken, name string

	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Sign in with a Google or Apple ID token",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"provider": provider, "id_token": idToken}
			if name != "" {
				req["display_name"] = name
			}
			return login(cmd, req)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "google", "Identity provider: google, apple")
	cmd.Flags().StringVar(&idToken, "id-token", "", "ID token issued by the provider (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name for a first sign-in")
	_ = cmd.MarkFlagRequired("id-token")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Token == "" {
				return fmt.Errorf("not logged in")
			}
			if err := client.Post(cmd.Context(), "/api/v1/auth/logout", nil, nil); err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}
			output(cmd).PrintMessage("Logged out")
			return nil
		},
	}
}

func newMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Identity

			if err := client.Get(cmd.Context(), "/api/v1/auth/me", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newPasswordCmd() *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the guest password (signs out every session)",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"current_password": current, "new_password": next}
			var result Identity
			if err := client.Post(cmd.Context(), "/api/v1/auth/password", req, &result); err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}
			output(cmd).PrintMessage("Password changed; log in again with the new password")
			return nil
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "Current password, if one is set")
	cmd.Flags().StringVar(&next, "new", "", "New password (required)")
	_ = cmd.MarkFlagRequired("new")

	return cmd
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
