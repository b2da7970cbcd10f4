package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iurnickita/abetos/internal/auth"
	"github.com/iurnickita/abetos/internal/model"
)

func NewMembersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Customer membership maintenance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "repair",
		Short: "Assign member numbers to customers that have none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, s, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			repaired, err := svc.RepairMemberNumbers(cmd.Context())
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"repaired": repaired})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "member numbers repaired: %d\n", repaired)
			return nil
		},
	})

	return cmd
}

func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Staff accounts",
	}

	var email, password, role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin or clerk account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(password, 0)
			if err != nil {
				return fmt.Errorf("password: %w", err)
			}

			svc, s, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			user, err := svc.CreateStaff(cmd.Context(), model.User{
				Email:        email,
				PasswordHash: hash,
				Role:         strings.ToLower(role),
			})
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"id": user.ID, "email": user.Email, "role": user.Role})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d created: %s (%s)\n", user.ID, user.Email, user.Role)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "account email")
	create.Flags().StringVar(&password, "password", "", "account password")
	create.Flags().StringVar(&role, "role", model.RoleAdmin, "admin or clerk")
	create.MarkFlagRequired("email")
	create.MarkFlagRequired("password")
	cmd.AddCommand(create)

	return cmd
}
