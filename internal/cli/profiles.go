package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hemo-board/internal/identity"
	"hemo-board/internal/model"
)

func newProfilesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage user roles",
	}
	cmd.AddCommand(newProfilesSetCmd(app))
	cmd.AddCommand(newProfilesListCmd(app))
	return cmd
}

func newProfilesSetCmd(app *App) *cobra.Command {
	var p model.Profile
	var role string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update a profile",
		Example: strings.TrimSpace(`
hemoboard profiles set --user u-ana --email ana@hosp.es --role editor
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := model.ParseRole(strings.ToLower(strings.TrimSpace(role)))
			if !ok {
				return writeErr(cmd, fmt.Errorf("invalid role %q (expected editor|viewer)", role))
			}
			p.Role = r
			p.UserID = strings.TrimSpace(p.UserID)
			p.Email = strings.ToLower(strings.TrimSpace(p.Email))
			if p.UserID == "" {
				return writeErr(cmd, errors.New("missing --user-id"))
			}

			s, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			if err := s.UpsertProfile(cmd.Context(), p); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": p})
		},
	}

	cmd.Flags().StringVar(&p.UserID, "user-id", "", "User id")
	cmd.Flags().StringVar(&p.Email, "email", "", "Email used to sign in")
	cmd.Flags().StringVar(&role, "role", string(model.RoleViewer), "Role (editor|viewer)")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newProfilesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			ps, err := s.ListProfiles(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": ps})
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			u, role, err := identity.Resolve(cmd.Context(), app.session(s))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"user": u, "role": role}})
		},
	}
}
