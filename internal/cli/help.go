package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// subcommandsHeading starts the generated list in a parent's long help.
const subcommandsHeading = "\n\nSubcommands:\n"

// walkCommands calls fn on cmd and then on every descendant, parents first.
func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

// enrichParentLong lists the visible subcommands of a parent such as
// "offline" or "config" under its long help. Calling it twice is a no-op.
func enrichParentLong(cmd *cobra.Command) {
	if !cmd.HasSubCommands() || strings.Contains(cmd.Long, subcommandsHeading) {
		return
	}

	var visible []*cobra.Command
	width := 0
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		visible = append(visible, sub)
		width = max(width, len(sub.Name()))
	}
	if len(visible) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(cmd.Long)
	sb.WriteString(subcommandsHeading)
	for _, sub := range visible {
		fmt.Fprintf(&sb, "  %-*s  %s\n", width, sub.Name(), sub.Short)
	}
	cmd.Long = sb.String()
}
