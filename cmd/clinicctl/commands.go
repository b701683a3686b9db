package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/clinic-portal/internal/api/dto"
	"github.com/spec-kit/clinic-portal/internal/domain"
	"github.com/spec-kit/clinic-portal/internal/rbac"
	"github.com/spec-kit/clinic-portal/internal/session"
)

const passwordEnv = "CLINIC_PASSWORD"

var errNotSignedIn = errors.New("not signed in")

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func passwordFrom(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(passwordEnv)
}

func newLoginCmd(p *portal) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw := passwordFrom(password)
			if email == "" || pw == "" {
				return fmt.Errorf("--email and --password (or $%s) are required", passwordEnv)
			}
			identity, err := p.session.Login(cmd.Context(), email, pw)
			if err != nil {
				if errors.Is(err, session.ErrUnauthorized) {
					return errors.New("login failed: invalid email or password")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", identity.DisplayName(), identity.Role)
			fmt.Fprintf(cmd.OutOrStdout(), "landing: %s\n", p.gate.LandingRouteForIdentity(identity))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newLogoutCmd(p *portal) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if revoke {
				p.session.SignOut(cmd.Context())
			} else {
				p.session.Logout(cmd.Context())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed out; next: %s\n", p.gate.Paths().Login)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "also revoke the refresh token with the API")
	return cmd
}

func newWhoamiCmd(p *portal) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity of the restored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity := p.session.CurrentIdentity()
			if identity == nil {
				return errNotSignedIn
			}
			return printJSON(cmd.OutOrStdout(), identity)
		},
	}
}

func newMeCmd(p *portal) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Fetch the current profile from the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var me *domain.Identity
			err := p.session.Authorized(cmd.Context(), func(ctx context.Context, bearer string) error {
				var err error
				me, err = p.api.Me(ctx, bearer)
				return err
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), me)
		},
	}
}

func newRefreshCmd(p *portal) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Trade the refresh token for a new access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity, err := p.session.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed session for %s\n", identity.Email)
			return nil
		},
	}
}

func newOpenCmd(p *portal) *cobra.Command {
	var (
		roles     []string
		forbidden string
	)
	cmd := &cobra.Command{
		Use:   "open <route>",
		Short: "Check whether the session may enter a role-gated route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			allowed := make([]domain.Role, 0, len(roles))
			for _, r := range roles {
				allowed = append(allowed, domain.Role(strings.TrimSpace(r)))
			}
			var opts []rbac.Option
			if forbidden != "" {
				opts = append(opts, rbac.WithForbiddenPath(forbidden))
			}

			decision := p.gate.Authorize(p.session.CurrentIdentity(), allowed, opts...)
			if decision.Allowed() {
				fmt.Fprintf(cmd.OutOrStdout(), "allow %s\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "redirect %s\n", decision.Path)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "roles allowed on the route")
	cmd.Flags().StringVar(&forbidden, "forbidden-path", "", "where to send signed-in users without a listed role")
	return cmd
}

func newLandingCmd(p *portal) *cobra.Command {
	return &cobra.Command{
		Use:   "landing",
		Short: "Print where the session lands after sign-in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), p.gate.LandingRouteForIdentity(p.session.CurrentIdentity()))
			return nil
		},
	}
}

func newForgotPasswordCmd(p *portal) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Ask the API to mail a password reset code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			sent, err := p.api.ForgotPassword(cmd.Context(), email)
			if err != nil {
				return err
			}
			if !sent {
				return errors.New("reset code was not sent")
			}
			p.resetEmail.Save(cmd.Context(), email)
			fmt.Fprintf(cmd.OutOrStdout(), "reset code sent to %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newResetPasswordCmd(p *portal) *cobra.Command {
	var code, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a mailed reset code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw := passwordFrom(password)
			if code == "" || pw == "" {
				return fmt.Errorf("--code and --password (or $%s) are required", passwordEnv)
			}
			if email, ok := p.resetEmail.Load(cmd.Context()); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "resetting password for %s\n", email)
			}
			if err := p.api.VerifyResetCode(cmd.Context(), code); err != nil {
				return fmt.Errorf("verify code: %w", err)
			}
			if err := p.api.ResetPassword(cmd.Context(), code, pw); err != nil {
				return err
			}
			p.resetEmail.Clear(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "password updated; next: %s\n", p.gate.Paths().Login)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "six digit reset code")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}

func newRegisterCmd(p *portal) *cobra.Command {
	var req dto.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a clinic account (admin only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireAdmin(p, "register"); err != nil {
				return err
			}
			var created *domain.Identity
			err := p.session.Authorized(cmd.Context(), func(ctx context.Context, bearer string) error {
				var err error
				created, err = p.api.Register(ctx, bearer, req)
				return err
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "new account email")
	cmd.Flags().StringVar(&req.PhoneNumber, "phone", "", "new account phone number")
	cmd.Flags().StringVar(&req.Roles, "role", string(domain.RoleEmployee), "role to grant")
	cmd.Flags().StringVar(&req.Profile.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.Profile.LastName, "last-name", "", "last name")
	return cmd
}

func requireAdmin(p *portal, action string) error {
	decision := p.gate.Authorize(p.session.CurrentIdentity(), []domain.Role{domain.RoleAdmin})
	if !decision.Allowed() {
		return fmt.Errorf("%s requires an admin session (redirect %s)", action, decision.Path)
	}
	return nil
}
