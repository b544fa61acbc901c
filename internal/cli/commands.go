package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshua-takyi/humanfolio/internal/container"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/services"
)

func newRegisterCmd(s *runner) *cobra.Command {
	var in services.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.TermsAccepted = true
			return s.run(cmd, func(ctx context.Context, c *container.Container) error {
				user, err := c.UserService.Register(ctx, in)
				if err != nil {
					return err
				}
				if err := c.Reconciler.SignIn(ctx, *user); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s (%s)\n", user.Name, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "password, at least 8 characters")
	cmd.Flags().StringVar(&in.Role, "role", "", "what you make, e.g. weaver")
	cmd.Flags().StringVar(&in.City, "city", "", "city")
	cmd.Flags().StringVar(&in.Country, "country", "", "country")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(s *runner) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the identity for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, func(ctx context.Context, c *container.Container) error {
				user, err := c.UserService.Login(ctx, email, password)
				if err != nil {
					return err
				}
				if err := c.Reconciler.SignIn(ctx, *user); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", user.Name, user.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(s *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, func(ctx context.Context, c *container.Container) error {
				if err := c.Reconciler.SignOut(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(s *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, func(ctx context.Context, c *container.Container) error {
				u, err := signedIn(c.Reconciler)
				if err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), u)
				return nil
			})
		},
	}
}

func newProjectsCmd(s *runner) *cobra.Command {
	var f services.ListFilter
	var mine bool
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, func(ctx context.Context, c *container.Container) error {
				if mine {
					u, err := signedIn(c.Reconciler)
					if err != nil {
						return err
					}
					f.AuthorID = u.ID
				}
				printProjects(cmd.OutOrStdout(), c.ProjectService.List(f))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Tag, "tag", "", "only projects with this tag")
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "search titles, descriptions, authors and tags")
	cmd.Flags().StringVar(&f.AuthorID, "author", "", "only projects by this user id")
	cmd.Flags().BoolVar(&mine, "mine", false, "only your own projects")
	return cmd
}

func newShowCmd(s *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its stage scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, func(ctx context.Context, c *container.Container) error {
				p, err := c.ProjectService.Get(args[0])
				if err != nil {
					return err
				}
				printProject(cmd.OutOrStdout(), *p)
				return nil
			})
		},
	}
}

func newVoteCmd(s *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <project-id> <phase> <0-20>",
		Short: "Rate one phase of a project",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			vote, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("vote must be a whole number: %w", err)
			}
			return s.run(cmd, func(ctx context.Context, c *container.Container) error {
				if _, err := signedIn(c.Reconciler); err != nil {
					return err
				}
				p, err := c.ProjectService.Vote(ctx, args[0], args[1], vote)
				if err != nil {
					return err
				}
				phase, _ := models.ParsePhase(args[1])
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d/%d, total %d/%d\n",
					p.Title, phase.Title(), p.Stages[phase].PeerRating, models.MaxStageRating,
					p.TotalHumanityScore, models.MaxTotalScore)
				return nil
			})
		},
	}
}

func newPublishCmd(s *runner) *cobra.Command {
	var (
		in     services.ProjectInput
		stages []string
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a new project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseStageFlags(stages)
			if err != nil {
				return err
			}
			in.Stages = parsed
			return s.run(cmd, func(ctx context.Context, c *container.Container) error {
				u, err := signedIn(c.Reconciler)
				if err != nil {
					return err
				}
				author, err := c.UserService.GetUser(u.ID)
				if err != nil {
					return err
				}
				p, err := c.ProjectService.Create(ctx, *author, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published %s (%s)\n", p.Title, p.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "project title")
	cmd.Flags().StringVar(&in.Description, "description", "", "what you made")
	cmd.Flags().StringVar(&in.CoverImage, "cover", "", "cover image URL")
	cmd.Flags().StringSliceVar(&in.Tags, "tag", nil, "tag, repeatable")
	cmd.Flags().StringArrayVar(&stages, "stage", nil, "phase=description, repeatable")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newDeleteCmd(s *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete one of your projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, func(ctx context.Context, c *container.Container) error {
				u, err := signedIn(c.Reconciler)
				if err != nil {
					return err
				}
				if err := c.ProjectService.Delete(ctx, u.ID, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

// parseStageFlags turns phase=description pairs into stage inputs.
func parseStageFlags(pairs []string) (map[string]services.StageInput, error) {
	out := make(map[string]services.StageInput, len(pairs))
	for _, pair := range pairs {
		phase, desc, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("stage %q is not phase=description", pair)
		}
		p, err := models.ParsePhase(phase)
		if err != nil {
			return nil, err
		}
		out[string(p)] = services.StageInput{Description: desc}
	}
	return out, nil
}
