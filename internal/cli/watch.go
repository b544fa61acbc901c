package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshua-takyi/humanfolio/internal/container"
	"github.com/joshua-takyi/humanfolio/internal/reconciler"
)

func newWatchCmd(s *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the score table whenever projects change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, func(ctx context.Context, c *container.Container) error {
				return watch(ctx, cmd, c.Reconciler)
			})
		},
	}
}

// watch runs until ctx ends.
func watch(ctx context.Context, cmd *cobra.Command, rec *reconciler.Reconciler) error {
	out := cmd.OutOrStdout()
	projects, stopProjects := rec.Watch(reconciler.ChangeProjects)
	defer stopProjects()
	identity, stopIdentity := rec.Watch(reconciler.ChangeIdentity)
	defer stopIdentity()

	printProjects(out, rec.Projects())
	last := rec.Identity()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-projects:
			fmt.Fprintln(out)
			printProjects(out, rec.Projects())
		case <-identity:
			u := rec.Identity()
			switch {
			case u == nil:
				fmt.Fprintln(out, "* signed out")
			case last == nil || last.ID != u.ID:
				fmt.Fprintf(out, "* signed in as %s\n", u.Name)
			default:
				fmt.Fprintf(out, "* profile of %s refreshed\n", u.Name)
			}
			last = u
		}
	}
}
