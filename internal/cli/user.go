package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/dock-slot-reservation/internal/model"
	"github.com/iliyamo/dock-slot-reservation/internal/repository"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the people that reservations and closures refer to",
	}
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func validRole(role string) bool {
	switch role {
	case model.RoleClient, model.RoleOperator, model.RoleAdmin:
		return true
	}
	return false
}

func newUserAddCmd() *cobra.Command {
	var username, name, role, contact string

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			role = strings.ToLower(strings.TrimSpace(role))
			if !validRole(role) {
				return fmt.Errorf("unknown role %q (want client, operator or admin)", role)
			}
			db, _, err := openMigrated(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			p := model.Person{Username: username, Name: name, Role: role}
			if contact = strings.TrimSpace(contact); contact != "" {
				p.Contact = &contact
			}
			id, err := repository.NewUserRepo(db).Create(cmd.Context(), p)
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("username %q already exists", username)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q with id %d\n", role, username, id)
			return nil
		},
	}

	c.Flags().StringVar(&username, "username", "", "login name, stored lowercase")
	c.Flags().StringVar(&name, "name", "", "display name")
	c.Flags().StringVar(&role, "role", model.RoleClient, "client, operator or admin")
	c.Flags().StringVar(&contact, "contact", "", "phone or email shown to operators")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("name")
	return c
}

func newUserListCmd() *cobra.Command {
	var role string

	c := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openMigrated(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			people, err := repository.NewUserRepo(db).ListByRole(cmd.Context(), role)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tROLE\tCONTACT")
			for _, p := range people {
				contact := "-"
				if p.Contact != nil {
					contact = *p.Contact
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Username, p.Name, p.Role, contact)
			}
			return w.Flush()
		},
	}
	c.Flags().StringVar(&role, "role", "", "only list users with this role")
	return c
}
