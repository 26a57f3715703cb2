package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Identity:
		o.printIdentity(v)
	case AuthResult:
		o.printAuthResult(v)
	case Room:
		o.printRoom(v)
	case RoomList:
		o.printRoomList(v)
	case IdentityList:
		o.printIdentityList(v)
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case Event:
		_, _ = fmt.Fprintf(o.w, "[%s] %s %s\n", v.Time.Format("15:04:05"), v.Event, v.Data)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Identity response type (matches API)
type Identity struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	HasPassword bool      `json:"has_password"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthResult combines identity and token
type AuthResult struct {
	Identity     Identity  `json:"identity"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IdentityList response type
type IdentityList struct {
	Identities []Identity `json:"identities"`
}

// Member response type
type Member struct {
	IdentityID string    `json:"identity_id"`
	Role       string    `json:"role"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Room response type
type Room struct {
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	HostID         string    `json:"host_id"`
	MaxPlayers     int       `json:"max_players"`
	MaxSpectators  int       `json:"max_spectators"`
	Visibility     string    `json:"visibility"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	PlayerCount    int       `json:"player_count"`
	SpectatorCount int       `json:"spectator_count"`
	IsJoined       bool      `json:"is_joined"`
	Joinable       bool      `json:"joinable"`
	Members        []Member  `json:"members,omitempty"`
}

// RoomList response type
type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (o *Output) printIdentity(i Identity) {
	_, _ = fmt.Fprintf(o.w, "Identity: %s (%s)\n", i.DisplayName, i.ID)
	_, _ = fmt.Fprintf(o.w, "Provider: %s\n", i.Provider)
	_, _ = fmt.Fprintf(o.w, "Role: %s\n", i.Role)
	if i.Provider == "guest" {
		_, _ = fmt.Fprintf(o.w, "Password: %s\n", yesNo(i.HasPassword))
	}
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printIdentity(a.Identity)
	_, _ = fmt.Fprintf(o.w, "Token: %s\n", a.SessionToken)
	_, _ = fmt.Fprintf(o.w, "Expires: %s\n", a.ExpiresAt.Local().Format(time.RFC1123))
}

func (o *Output) printRoom(r Room) {
	_, _ = fmt.Fprintf(o.w, "Room: %s (%s)\n", r.Name, r.Code)
	_, _ = fmt.Fprintf(o.w, "Status: %s, %s\n", r.Status, r.Visibility)
	_, _ = fmt.Fprintf(o.w, "Players: %d/%d\n", r.PlayerCount, r.MaxPlayers)
	_, _ = fmt.Fprintf(o.w, "Spectators: %d/%d\n", r.SpectatorCount, r.MaxSpectators)
	_, _ = fmt.Fprintf(o.w, "Joined: %s\n", yesNo(r.IsJoined))
	if len(r.Members) > 0 {
		_, _ = fmt.Fprintf(o.w, "Members (%d):\n", len(r.Members))
		for _, m := range r.Members {
			host := ""
			if m.IdentityID == r.HostID {
				host = " [host]"
			}
			_, _ = fmt.Fprintf(o.w, "  - %s - %s%s\n", m.IdentityID, m.Role, host)
		}
	}
}

func (o *Output) printRoomList(l RoomList) {
	if len(l.Rooms) == 0 {
		_, _ = fmt.Fprintln(o.w, "No rooms")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CODE\tNAME\tPLAYERS\tSPECTATORS\tSTATUS\tJOINED")
	for _, r := range l.Rooms {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d/%d\t%s\t%s\n",
			r.Code, r.Name, r.PlayerCount, r.MaxPlayers, r.SpectatorCount, r.MaxSpectators,
			r.Status, yesNo(r.IsJoined))
	}
	_ = tw.Flush()
}

func (o *Output) printIdentityList(l IdentityList) {
	if len(l.Identities) == 0 {
		_, _ = fmt.Fprintln(o.w, "No identities")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tPROVIDER\tROLE")
	for _, i := range l.Identities {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", i.ID, strings.ReplaceAll(i.DisplayName, "\t", " "), i.Provider, i.Role)
	}
	_ = tw.Flush()
}
