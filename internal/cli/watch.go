package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// Event is one server-sent room event
type Event struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newRoomWatchCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch <code>",
		Short: "Stream a room's events",
		Long: `Connect to the room's event stream and print events as they arrive.

Events:
  - member_joined: someone took a player or spectator seat
  - room_archived: the room stopped accepting joins

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watchRoom(ctx, cmd, args[0], count)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many events (0 streams until interrupted)")

	return cmd
}

func watchRoom(ctx context.Context, cmd *cobra.Command, code string, count int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, err := client.Stream(ctx, "/api/v1/rooms/"+url.PathEscape(code)+"/events")
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	out := output(cmd)
	seen := 0
	err = readEvents(body, func(name, data string) bool {
		if name == "connected" {
			if cfg.Output != "json" {
				out.PrintMessage("Watching room " + strings.ToUpper(code))
			}
			return true
		}
		if data == "" {
			data = "null"
		}
		out.Print(Event{Time: time.Now().UTC(), Event: name, Data: json.RawMessage(data)})
		seen++
		return count <= 0 || seen < count
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}
	return nil
}

// readEvents calls fn for each event until fn returns false or the stream ends
func readEvents(r io.Reader, fn func(name, data string) bool) error {
	scanner := bufio.NewScanner(r)
	var (
		name string
		data []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		case line == "":
			if name != "" && !fn(name, strings.Join(data, "\n")) {
				return nil
			}
			name, data = "", nil
		}
	}
	return scanner.Err()
}
