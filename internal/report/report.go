package report

import (
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/mastery"
	"github.com/learnsmart/tutor/internal/model"
	"github.com/learnsmart/tutor/internal/store"
)

const rule = "─"

func statusBadge(s model.Status) string {
	switch s {
	case model.StatusCompleted:
		return Good.Render("done")
	case model.StatusInProgress:
		return Info.Render("now ")
	case model.StatusSkipped:
		return Hint.Render("skip")
	default:
		return Subtitle.Render("todo")
	}
}

// Plan writes a plan with one card per module. cat supplies content titles
// and may be nil.
func Plan(w io.Writer, plan model.LearningPlan, cat *catalog.Catalog) {
	fmt.Fprintln(w, Title.Render(fmt.Sprintf("Plan %s", plan.PlanID))+
		Subtitle.Render(fmt.Sprintf("  v%d, %s, user %s", plan.Version, plan.GeneratedBy, plan.UserID)))

	for _, m := range plan.Modules {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %d. %s", statusBadge(m.Status), m.Position, lipgloss.NewStyle().Bold(true).Render(m.Title))
		fmt.Fprintf(&b, "  %s\n", Hint.Render(fmt.Sprintf("%.2fh", m.EstimatedHours)))
		for _, a := range m.Activities {
			title := string(a.ContentRef)
			if cat != nil {
				if e, ok := cat.Entry(a.ContentRef); ok && e.Title != "" {
					title = fmt.Sprintf("%s (%s)", e.Title, a.ContentRef)
				}
			}
			fmt.Fprintf(&b, "   %s %s %s\n", statusBadge(a.Status), title, Hint.Render(fmt.Sprintf("%dm", a.EstimatedMinutes)))
		}
		fmt.Fprintln(w, Card.Render(strings.TrimRight(b.String(), "\n")))
	}
}

// Changes writes a replan diff, one line per change.
func Changes(w io.Writer, changes model.ChangeSummary) {
	if len(changes) == 0 {
		fmt.Fprintln(w, Hint.Render("no changes"))
		return
	}
	for _, c := range changes {
		style := Subtitle
		switch c.Action {
		case model.ActionChallengeAdded, model.ActionSkipped:
			style = Good
		case model.ActionRemediationAdded, model.ActionReordered:
			style = Warn
		case model.ActionRemediationUnavailable:
			style = Bad
		}
		fmt.Fprintf(w, "  %-24s %-10s %s\n", style.Render(string(c.Action)), c.ModuleID, Hint.Render(c.Detail))
	}
}

// Mastery writes skill states as bars with their band.
func Mastery(w io.Writer, states []model.SkillState, cfg mastery.Config) {
	const width = 20
	for _, s := range states {
		filled := int(s.Mastery*width + 0.5)
		bar := Good.Render(strings.Repeat("█", filled)) + Subtitle.Render(strings.Repeat("░", width-filled))
		fmt.Fprintf(w, "  %-16s %s %.2f %s\n", s.SkillID, bar, s.Mastery, Hint.Render(string(cfg.BandOf(&s))))
	}
}

// Decisions writes audit records as a table, newest first.
func Decisions(w io.Writer, decisions []store.Decision) {
	if len(decisions) == 0 {
		fmt.Fprintln(w, "No decisions recorded.")
		return
	}
	fmt.Fprintf(w, "%-5s  %-19s  %-16s  %-10s  %-4s  %-24s  %6s  %s\n",
		"ID", "Timestamp", "Op", "Strategy", "FB", "Outcome", "Ms", "Summary")
	fmt.Fprintln(w, strings.Repeat(rule, 110))
	for _, d := range decisions {
		outcome := Good.Render(d.Outcome)
		if d.Outcome != "ok" {
			outcome = Bad.Render(d.Outcome)
		}
		fb := ""
		if d.FellBack {
			fb = Warn.Render("yes")
		}
		fmt.Fprintf(w, "%-5d  %-19s  %-16s  %-10s  %-4s  %-24s  %6d  %s\n",
			d.ID,
			d.Timestamp.Local().Format("2006-01-02 15:04:05"),
			d.Op,
			d.Strategy,
			fb,
			outcome,
			d.LatencyMs,
			truncate(d.Summary, 60),
		)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
