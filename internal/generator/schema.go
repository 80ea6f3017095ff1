package generator

import "github.com/learnsmart/tutor/internal/llm"

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func strArray(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}

func unit(desc string) map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "maximum": 1, "description": desc}
}

// PlanSchema is the structured output of GeneratePlan.
var PlanSchema = &llm.Schema{
	Name:        "plan-proposal",
	Description: "An ordered list of learning modules built only from catalog content ids",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"modules": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":        str("Short module title"),
						"targetSkills": strArray("Skill ids this module trains"),
						"contentRefs":  strArray("Catalog content ids, in study order"),
					},
					"required":             []any{"title", "targetSkills", "contentRefs"},
					"additionalProperties": false,
				},
			},
			"rationale": str("One or two sentences on how the plan fits the goals"),
		},
		"required":             []any{"modules", "rationale"},
		"additionalProperties": false,
	},
}

// RevisionSchema is the structured output of ReviseModules.
var RevisionSchema = &llm.Schema{
	Name:        "plan-revisions",
	Description: "Minimal revisions to the open modules of a learning plan",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"revisions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action": map[string]any{
							"type": "string",
							"enum": []any{"skip", "remediate", "challenge", "reorder", "note"},
						},
						"moduleId":       str("Id of the module the revision applies to"),
						"contentRef":     str("Catalog content id for remediate and challenge, empty otherwise"),
						"beforeModuleId": str("For reorder: move the module before this one, empty otherwise"),
						"note":           str("Short reason"),
					},
					"required":             []any{"action", "moduleId", "contentRef", "beforeModuleId", "note"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"revisions"},
		"additionalProperties": false,
	},
}

// ItemSchema is the structured output of GenerateItem.
var ItemSchema = &llm.Schema{
	Name:        "assessment-item",
	Description: "A multiple-choice assessment item with exactly one correct option",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stem":       str("The question"),
			"difficulty": unit("Difficulty from 0 (trivial) to 1 (expert)"),
			"skillIds":   strArray("Skill ids the item assesses, most important first"),
			"options": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"statement": str("Option text"),
						"isCorrect": map[string]any{"type": "boolean"},
						"feedback":  str("Why this option is right or wrong, without naming the correct option"),
					},
					"required":             []any{"statement", "isCorrect", "feedback"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"stem", "difficulty", "skillIds", "options"},
		"additionalProperties": false,
	},
}

// VerdictSchema is the structured output of JudgeOpenAnswer.
var VerdictSchema = &llm.Schema{
	Name:        "open-answer-verdict",
	Description: "Judgment of a learner's free-text answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"isCorrect":   map[string]any{"type": "boolean"},
			"score":       unit("Partial credit from 0 to 1"),
			"explanation": str("One or two sentences for the learner"),
		},
		"required":             []any{"isCorrect", "score", "explanation"},
		"additionalProperties": false,
	},
}

// ExplanationSchema is the structured output of ExplainAnswer.
var ExplanationSchema = &llm.Schema{
	Name:        "answer-feedback",
	Description: "Learner-facing feedback on one answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": str("Two to four sentences of feedback"),
		},
		"required":             []any{"message"},
		"additionalProperties": false,
	},
}

// LessonsSchema is the structured output of GenerateLessons.
var LessonsSchema = &llm.Schema{
	Name:        "micro-lessons",
	Description: "A batch of short lessons for one domain",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"lessons": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":            str("Lesson title"),
						"description":      str("One-sentence summary"),
						"body":             str("Full lesson content in Markdown"),
						"estimatedMinutes": map[string]any{"type": "integer", "minimum": 1},
						"difficulty":       unit("Difficulty from 0 to 1"),
						"type": map[string]any{
							"type": "string",
							"enum": []any{"lesson", "practice"},
						},
					},
					"required":             []any{"title", "description", "body", "estimatedMinutes", "difficulty", "type"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"lessons"},
		"additionalProperties": false,
	},
}
