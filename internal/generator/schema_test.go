package generator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/learnsmart/tutor/internal/llm"
)

func TestSchemas_AcceptAndReject(t *testing.T) {
	tests := []struct {
		name   string
		schema *llm.Schema
		raw    string
		valid  bool
	}{
		{"plan", PlanSchema,
			`{"modules":[{"title":"Hooks","targetSkills":["react.hooks"],"contentRefs":["r1","r2"]}],"rationale":"Hooks first."}`, true},
		{"plan without rationale", PlanSchema,
			`{"modules":[]}`, false},
		{"plan module with extra field", PlanSchema,
			`{"modules":[{"title":"Hooks","targetSkills":[],"contentRefs":[],"minutes":30}],"rationale":"r"}`, false},
		{"plan content refs not strings", PlanSchema,
			`{"modules":[{"title":"Hooks","targetSkills":[],"contentRefs":[1]}],"rationale":"r"}`, false},

		{"revision", RevisionSchema,
			`{"revisions":[{"action":"remediate","moduleId":"m1","contentRef":"r3","beforeModuleId":"","note":"weak"}]}`, true},
		{"no revisions", RevisionSchema,
			`{"revisions":[]}`, true},
		{"revision with unknown action", RevisionSchema,
			`{"revisions":[{"action":"delete","moduleId":"m1","contentRef":"","beforeModuleId":"","note":""}]}`, false},
		{"revision without before id", RevisionSchema,
			`{"revisions":[{"action":"reorder","moduleId":"m1","contentRef":"","note":""}]}`, false},

		{"item", ItemSchema,
			`{"stem":"What does useState return?","difficulty":0.4,"skillIds":["react.state"],
			  "options":[{"statement":"A pair","isCorrect":true,"feedback":"Yes."},{"statement":"A promise","isCorrect":false,"feedback":"No."}]}`, true},
		{"item difficulty above one", ItemSchema,
			`{"stem":"s","difficulty":1.5,"skillIds":[],"options":[]}`, false},
		{"item option without feedback", ItemSchema,
			`{"stem":"s","difficulty":0.2,"skillIds":[],"options":[{"statement":"a","isCorrect":true}]}`, false},
		{"item correctness as string", ItemSchema,
			`{"stem":"s","difficulty":0.2,"skillIds":[],"options":[{"statement":"a","isCorrect":"yes","feedback":"f"}]}`, false},

		{"verdict", VerdictSchema,
			`{"isCorrect":false,"score":0.5,"explanation":"Half right."}`, true},
		{"verdict score above one", VerdictSchema,
			`{"isCorrect":true,"score":2,"explanation":"e"}`, false},
		{"verdict negative score", VerdictSchema,
			`{"isCorrect":false,"score":-0.1,"explanation":"e"}`, false},

		{"explanation", ExplanationSchema,
			`{"message":"Close, but effects run after render."}`, true},
		{"explanation with extra field", ExplanationSchema,
			`{"message":"m","tone":"kind"}`, false},

		{"lessons", LessonsSchema,
			`{"lessons":[{"title":"Props","description":"Passing data","body":"# Props","estimatedMinutes":10,"difficulty":0.3,"type":"lesson"}]}`, true},
		{"lesson of zero minutes", LessonsSchema,
			`{"lessons":[{"title":"t","description":"d","body":"b","estimatedMinutes":0,"difficulty":0.3,"type":"lesson"}]}`, false},
		{"lesson minutes fractional", LessonsSchema,
			`{"lessons":[{"title":"t","description":"d","body":"b","estimatedMinutes":7.5,"difficulty":0.3,"type":"practice"}]}`, false},
		{"lesson of unknown type", LessonsSchema,
			`{"lessons":[{"title":"t","description":"d","body":"b","estimatedMinutes":5,"difficulty":0.3,"type":"quiz"}]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := llm.ValidateResponse(tt.schema, json.RawMessage(tt.raw))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, llm.KindInvalidResponse, llm.Kind(err))
			assert.Contains(t, err.Error(), tt.schema.Name)
		})
	}
}

func TestSchemas_NamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range []*llm.Schema{PlanSchema, RevisionSchema, ItemSchema, VerdictSchema, ExplanationSchema, LessonsSchema} {
		assert.False(t, seen[s.Name], "duplicate schema name %s", s.Name)
		seen[s.Name] = true
	}
}
