package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/soarclient/soarsocket/pkg/model"
)

// Console reads operator commands line by line.
type Console struct {
	hub *Hub
	in  io.Reader
	out io.Writer
}

// NewConsole creates a console reading from in and printing to out.
func NewConsole(h *Hub, in io.Reader, out io.Writer) *Console {
	return &Console{hub: h, in: in, out: out}
}

// Run processes commands until in is exhausted or ctx is cancelled.
// Cancellation is only observed between lines.
func (c *Console) Run(ctx context.Context) error {
	_, _ = fmt.Fprintln(c.out, "\nServer console ready. Type \"help\" for available commands.")
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		c.exec(ctx, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("console: read: %w", err)
	}
	return nil
}

// Exec runs one command line.
func (c *Console) Exec(line string) {
	c.exec(context.Background(), line)
}

func (c *Console) exec(ctx context.Context, line string) {
	command, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch command {
	case "":
	case "broadcast":
		msg := strings.TrimSpace(args)
		if msg == "" {
			_, _ = fmt.Fprintln(c.out, "Usage: broadcast <message>")
			return
		}
		n := c.hub.BroadcastServerMessage(msg)
		_, _ = fmt.Fprintf(c.out, "Sent to %d connection(s).\n", n)
	case "users":
		c.printUsers()
	case "role":
		c.setRole(ctx, strings.Fields(args))
	case "help":
		_, _ = fmt.Fprint(c.out, `
Available commands:
broadcast <message> - Send message to all connected clients
users - List all connected users
role <identity> <role|remove> - Change or remove a stored role
help - Show this help message

`)
	default:
		slog.Debug("unknown console command", "command", command)
		_, _ = fmt.Fprintln(c.out, `Unknown command. Type "help" for available commands.`)
	}
}

func (c *Console) setRole(ctx context.Context, args []string) {
	if len(args) != 2 {
		_, _ = fmt.Fprintf(c.out, "Usage: role <identity> <%s|remove>\n", model.RoleNames())
		return
	}
	identity, name := args[0], args[1]

	change := Change{Remove: name == "remove"}
	if !change.Remove {
		role, err := model.ParseRole(name)
		if err != nil {
			_, _ = fmt.Fprintf(c.out, "Unknown role %q. Valid roles: %s\n", name, model.RoleNames())
			return
		}
		change.Role = role
	}
	if err := c.hub.MutateRole(ctx, identity, change); err != nil {
		_, _ = fmt.Fprintf(c.out, "Role change failed: %v\n", err)
		return
	}
	if change.Remove {
		_, _ = fmt.Fprintf(c.out, "Removed stored role for %s.\n", identity)
		return
	}
	_, _ = fmt.Fprintf(c.out, "%s is now %s.\n", identity, change.Role)
}

func (c *Console) printUsers() {
	sessions := c.hub.Sessions()

	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"Name", "Identity", "Role", "Remote", "Connected"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, s := range sessions {
		table.Append([]string{
			s.DisplayName,
			s.Identity,
			s.Role.String(),
			s.RemoteAddr,
			s.BoundAt.Format("15:04:05"),
		})
	}
	table.Render()
	_, _ = fmt.Fprintf(c.out, "\nTotal: %d user(s) bound, %d connection(s) open\n\n",
		len(sessions), c.hub.Registry().Len())
}
