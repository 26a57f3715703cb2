package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Room commands",
	}

	cmd.AddCommand(newRoomCreateCmd())
	cmd.AddCommand(newRoomListCmd())
	cmd.AddCommand(newRoomGetCmd())
	cmd.AddCommand(newRoomJoinCmd())
	cmd.AddCommand(newRoomWatchCmd())

	return cmd
}

func newRoomCreateCmd() *cobra.Command {
	var (
		name          string
		maxPlayers    int
		maxSpectators int
		public        bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room and take the first seat",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"name": name}
			if maxPlayers > 0 {
				req["max_players"] = maxPlayers
			}
			if cmd.Flags().Changed("max-spectators") {
				req["max_spectators"] = maxSpectators
			}
			if public {
				req["visibility"] = "public"
			}

			var result Room
			if err := client.Post(cmd.Context(), "/api/v1/rooms", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Room name (required)")
	cmd.Flags().IntVar(&maxPlayers, "max-players", 0, "Player seats (default 4)")
	cmd.Flags().IntVar(&maxSpectators, "max-spectators", 0, "Spectator seats")
	cmd.Flags().BoolVar(&public, "public", false, "List the room publicly")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newRoomListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active rooms you can see",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result RoomList
			if err := client.Get(cmd.Context(), withQuery("/api/v1/rooms", pageQuery(limit, offset)), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rooms to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rooms to skip")

	return cmd
}

func newRoomGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <code>",
		Short: "Show a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Room
			if err := client.Get(cmd.Context(), "/api/v1/rooms/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newRoomJoinCmd() *cobra.Command {
	var spectator bool

	cmd := &cobra.Command{
		Use:   "join <code>",
		Short: "Join a room as a player or spectator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]bool{"spectator": spectator}
			var result Room
			if err := client.Post(cmd.Context(), "/api/v1/rooms/"+url.PathEscape(args[0])+"/join", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&spectator, "spectator", false, "Join as a spectator")

	return cmd
}
