package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin commands (requires the admin role)",
	}

	cmd.AddCommand(newAdminUsersCmd())
	cmd.AddCommand(newAdminSetRoleCmd())
	cmd.AddCommand(newAdminDeleteUserCmd())
	cmd.AddCommand(newAdminRoomsCmd())
	cmd.AddCommand(newAdminArchiveCmd())

	return cmd
}

func newAdminUsersCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List identities, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result IdentityList
			if err := client.Get(cmd.Context(), withQuery("/api/v1/admin/users", pageQuery(limit, offset)), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum identities to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Identities to skip")

	return cmd
}

func newAdminSetRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <identity-id> <admin|user|guest>",
		Short: "Change an identity's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Identity
			path := "/api/v1/admin/users/" + url.PathEscape(args[0]) + "/role"
			if err := client.Patch(cmd.Context(), path, map[string]string{"role": args[1]}, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newAdminDeleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <identity-id>",
		Short: "Delete an identity with its sessions and rooms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(cmd.Context(), "/api/v1/admin/users/"+url.PathEscape(args[0]), nil); err != nil {
				return err
			}
			output(cmd).PrintMessage("Deleted " + args[0])
			return nil
		},
	}
}

func newAdminRoomsCmd() *cobra.Command {
	var (
		status, sort  string
		limit, offset int
	)

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List every room regardless of visibility",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := pageQuery(limit, offset)
			if status != "" {
				q.Set("status", status)
			}
			if sort != "" {
				q.Set("sort", sort)
			}

			var result RoomList
			if err := client.Get(cmd.Context(), withQuery("/api/v1/admin/rooms", q), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status: active, archived")
	cmd.Flags().StringVar(&sort, "sort", "", "Order: newest, oldest, name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rooms to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rooms to skip")

	return cmd
}

func newAdminArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <code>",
		Short: "Archive a room so nobody else can join",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Room
			if err := client.Delete(cmd.Context(), "/api/v1/admin/rooms/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
