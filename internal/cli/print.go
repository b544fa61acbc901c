package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/scoring"
)

func printProjects(w io.Writer, projects []models.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(w, "no projects")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tSCORE\tBADGE")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Title, p.Author, p.TotalHumanityScore, scoring.ProjectBadge(p.TotalHumanityScore))
	}
	tw.Flush()
}

func printProject(w io.Writer, p models.Project) {
	fmt.Fprintf(w, "%s by %s\n", p.Title, p.Author)
	fmt.Fprintf(w, "%s\n", p.Description)
	if len(p.Tags) > 0 {
		fmt.Fprintf(w, "tags: %s\n", strings.Join(p.Tags, ", "))
	}
	fmt.Fprintf(w, "score: %d/%d (%s)\n\n", p.TotalHumanityScore, models.MaxTotalScore, scoring.ProjectBadge(p.TotalHumanityScore))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tPEER\tLABEL\tEVIDENCE\tDESCRIPTION")
	for _, phase := range models.Phases {
		st := p.Stages[phase]
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\n",
			phase.Title(), st.PeerRating, scoring.StageLabel(st.PeerRating), len(st.EvidenceLinks), st.Description)
	}
	tw.Flush()
}

func printUser(w io.Writer, u *models.User) {
	fmt.Fprintf(w, "%s <%s>\n", u.Name, u.Email)
	fmt.Fprintf(w, "id: %s\n", u.ID)
	if u.Role != "" {
		fmt.Fprintf(w, "role: %s\n", u.Role)
	}
	if u.Location != "" {
		fmt.Fprintf(w, "location: %s\n", u.Location)
	}
	fmt.Fprintf(w, "followers: %d, following: %d\n", u.Followers, len(u.Following))
}
