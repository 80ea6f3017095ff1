package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/learnsmart/tutor/internal/model"
)

const planSystemPrompt = `You are an educational planner for an adaptive tutoring service. You build a personalized learning plan from a fixed content catalog.

Rules:
- Use ONLY content ids listed in the catalog below. Never invent ids.
- Group content into modules by skill, easiest first, prerequisites before dependents.
- Respect the learner's weekly time budget per module.`

func buildPlanUserMessage(req PlanRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Learner: level=%s locale=%s\n", orDash(req.Profile.Level), orDash(req.Profile.Locale))
	if req.Constraints.HoursPerWeek > 0 {
		fmt.Fprintf(&b, "Weekly budget: %.1f hours (%d minutes per module)\n",
			req.Constraints.HoursPerWeek, int(req.Constraints.HoursPerWeek*60))
	} else {
		b.WriteString("Weekly budget: unbounded\n")
	}

	b.WriteString("\nGoals:\n")
	for _, g := range req.Goals {
		fmt.Fprintf(&b, "- %s: %s\n", orDash(g.Title), joinSkills(g.TargetSkills))
	}

	b.WriteString("\nSkills (id: name, prerequisites):\n")
	for _, s := range req.Skills {
		fmt.Fprintf(&b, "- %s: %s", s.ID, s.DisplayName())
		if len(s.Prerequisites) > 0 {
			fmt.Fprintf(&b, ", requires %s", joinSkills(s.Prerequisites))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nCatalog (id | skills | difficulty | minutes | type):\n")
	writeEntries(&b, req.Entries)

	b.WriteString("\nReturn modules that reference catalog ids only.")
	return b.String()
}

const reviseSystemPrompt = `You are an adaptive learning engine. You adjust an existing learning plan based on recent learner performance. Make the smallest change that helps; never rewrite the plan.

Strategy:
- Mastery rising fast: skip a pending module or add a harder catalog entry to the next module ("challenge").
- Mastery dropping: add an easier catalog entry for the weakest skill ("remediate").
- Stagnant: leave it ("note").
- Never touch modules whose status is completed. Use only catalog ids listed below.`

func buildReviseUserMessage(req ReviseRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Plan %s (version %d):\n", req.Plan.PlanID, req.Plan.Version)
	for _, m := range req.Plan.Modules {
		refs := make([]string, len(m.Activities))
		for i, a := range m.Activities {
			refs[i] = string(a.ContentRef)
		}
		fmt.Fprintf(&b, "- %s [%s] %q skills=%s content=%s\n",
			m.ID, m.Status, m.Title, joinSkills(m.TargetSkills), strings.Join(refs, ","))
	}

	b.WriteString("\nModule trends (net mastery change over recent events):\n")
	for _, t := range req.Trends {
		fmt.Fprintf(&b, "- %s: %s (%+.2f)\n", t.ModuleID, t.Trend, t.Net)
	}

	b.WriteString("\nSkill mastery:\n")
	for _, s := range req.SkillStates {
		fmt.Fprintf(&b, "- %s: %.2f after %d attempts\n", s.SkillID, s.Mastery, s.Attempts)
	}

	b.WriteString("\nCatalog (id | skills | difficulty | minutes | type):\n")
	writeEntries(&b, req.Entries)
	return b.String()
}

const itemSystemPrompt = `You write assessment items for an adaptive tutoring service. Each item is multiple choice with 3-5 options and exactly ONE correct option. Per-option feedback explains the reasoning without naming the correct option.`

func buildItemUserMessage(req ItemRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n", req.Domain)
	fmt.Fprintf(&b, "Target difficulty: %.2f (the learner's estimated mastery)\n", req.TargetMastery)
	if req.Locale != "" {
		fmt.Fprintf(&b, "Language: %s\n", req.Locale)
	}
	b.WriteString("Allowed skill ids (use only these in skillIds):\n")
	for _, s := range req.Skills {
		fmt.Fprintf(&b, "- %s: %s\n", s.ID, s.DisplayName())
	}
	return b.String()
}

const judgeSystemPrompt = `You grade free-text answers for a tutoring service. Be strict about correctness and generous about wording. Give partial credit in score when the answer is incomplete.`

func buildJudgeUserMessage(req JudgeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", req.Stem)
	if len(req.Skills) > 0 {
		fmt.Fprintf(&b, "Skills assessed: %s\n", strings.Join(req.Skills, ", "))
	}
	fmt.Fprintf(&b, "Learner answer: %s\n", req.Answer)
	return b.String()
}

const explainSystemPrompt = `You are an empathetic tutor giving feedback on one answer.
- Correct: reinforce the concept in one or two sentences.
- Incorrect: explain why the chosen answer is wrong and guide the learner toward the idea. Do NOT state the correct answer unless it is given to you below.`

func buildExplainUserMessage(req ExplainRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", req.Stem)
	fmt.Fprintf(&b, "Concept: %s\n", req.SkillName)
	fmt.Fprintf(&b, "Learner chose: %s\n", orDash(req.ChosenStatement))
	fmt.Fprintf(&b, "Correct: %t\n", req.IsCorrect)
	if req.ChosenFeedback != "" {
		fmt.Fprintf(&b, "Author note on that choice: %s\n", req.ChosenFeedback)
	}
	switch req.Category {
	case model.CategorySpeedRush:
		b.WriteString("The learner answered very quickly; encourage slowing down.\n")
	case model.CategoryCareless:
		b.WriteString("The learner usually gets this right; treat it as a slip.\n")
	}
	if req.CorrectStatement != "" {
		fmt.Fprintf(&b, "Correct answer (you may reveal it): %s\n", req.CorrectStatement)
	}
	return b.String()
}

const lessonsSystemPrompt = `You are an expert educational content creator. You write accurate, engaging micro-lessons and exercises.`

func buildLessonsUserMessage(req LessonRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n", req.Domain)
	fmt.Fprintf(&b, "Number of lessons: %d\n", req.N)
	fmt.Fprintf(&b, "Learner level: %s\n", orDash(req.Level))
	fmt.Fprintf(&b, "Difficulty: %s\n", orDash(req.Difficulty))
	fmt.Fprintf(&b, "Write in locale: %s\n", req.Locale)
	b.WriteString("\nEach lesson body is Markdown. Mix lessons and practice.")
	return b.String()
}

func writeEntries(b *strings.Builder, entries []model.ContentEntry) {
	sorted := make([]model.ContentEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, e := range sorted {
		skills := make([]string, len(e.SkillRefs))
		for i, r := range e.SkillRefs {
			skills[i] = fmt.Sprintf("%s:%.1f", r.SkillID, r.Weight)
		}
		fmt.Fprintf(b, "%s | %s | %.2f | %d | %s\n",
			e.ID, strings.Join(skills, ","), e.Difficulty, e.EstimatedMinutes, e.Type)
	}
}

func joinSkills(ids []model.SkillID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
