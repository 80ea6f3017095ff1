package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/engine"
	"github.com/learnsmart/tutor/internal/model"
)

// callOptions are the per-request strategy and generator timeout.
type callOptions struct {
	Strategy  string `json:"strategy" binding:"omitempty,oneof=heuristic generative"`
	TimeoutMs int    `json:"timeoutMs" binding:"gte=0,lte=120000"`
}

func (o callOptions) options() engine.CallOptions {
	return engine.CallOptions{
		Strategy: model.Strategy(o.Strategy),
		Timeout:  time.Duration(o.TimeoutMs) * time.Millisecond,
	}
}

type catalogPayload struct {
	Entries []model.ContentEntry `json:"entries" binding:"required,min=1"`
	Skills  []model.Skill        `json:"skills"`
}

func (p *catalogPayload) build() (*catalog.Catalog, error) {
	if p == nil {
		return nil, nil
	}
	cat, err := catalog.New(p.Entries, p.Skills)
	if err != nil {
		return nil, &badRequest{fmt.Errorf("catalog: %w", err)}
	}
	return cat, nil
}

type profilePayload struct {
	UserID string `json:"userId" binding:"required"`
	Locale string `json:"locale"`
	Level  string `json:"level"`
}

type generatePlanRequest struct {
	callOptions
	Profile     profilePayload    `json:"profile" binding:"required"`
	Goals       []model.Goal      `json:"goals" binding:"required,min=1"`
	Constraints model.Constraints `json:"constraints"`
	Catalog     catalogPayload    `json:"catalog" binding:"required"`
}

func (s *Server) generatePlan(c *gin.Context) {
	var req generatePlanRequest
	if !s.bind(c, &req) {
		return
	}
	if req.Constraints.HoursPerWeek < 0 {
		s.abort(c, &badRequest{errors.New("constraints.hoursPerWeek must be >= 0")})
		return
	}
	cat, err := req.Catalog.build()
	if err != nil {
		s.abort(c, err)
		return
	}

	res, err := s.engine.GeneratePlan(c.Request.Context(), engine.PlanRequest{
		CallOptions: req.options(),
		Profile:     model.Profile{UserID: req.Profile.UserID, Locale: req.Profile.Locale, Level: req.Profile.Level},
		Goals:       req.Goals,
		Constraints: req.Constraints,
		Catalog:     cat,
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	success(c, res)
}

type replanRequest struct {
	callOptions
	Plan         model.LearningPlan `json:"plan" binding:"required"`
	RecentEvents []model.Event      `json:"recentEvents"`
	SkillStates  []model.SkillState `json:"skillStates"`
	Catalog      *catalogPayload    `json:"catalog"`
}

func (s *Server) replan(c *gin.Context) {
	var req replanRequest
	if !s.bind(c, &req) {
		return
	}
	if req.Plan.PlanID == "" {
		s.abort(c, &badRequest{errors.New("plan.planId is required")})
		return
	}
	cat, err := req.Catalog.build()
	if err != nil {
		s.abort(c, err)
		return
	}

	res, err := s.engine.Replan(c.Request.Context(), engine.ReplanRequest{
		CallOptions:  req.options(),
		Plan:         req.Plan,
		RecentEvents: req.RecentEvents,
		SkillStates:  req.SkillStates,
		Catalog:      cat,
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	success(c, res)
}

type nextItemRequest struct {
	callOptions
	UserID         string                 `json:"userId"`
	Domain         string                 `json:"domain" binding:"required"`
	MasteryBySkill map[string]float64     `json:"masteryBySkill"`
	Skills         []model.Skill          `json:"skills"`
	Pool           []model.AssessmentItem `json:"pool"`
	RecentHistory  []model.HistoryEntry   `json:"recentHistory"`
	Locale         string                 `json:"locale"`
}

func (s *Server) nextItem(c *gin.Context) {
	var req nextItemRequest
	if !s.bind(c, &req) {
		return
	}
	mastery := make(map[model.SkillID]float64, len(req.MasteryBySkill))
	for k, v := range req.MasteryBySkill {
		if v < 0 || v > 1 {
			s.abort(c, &badRequest{fmt.Errorf("masteryBySkill[%s] must be in [0,1]", k)})
			return
		}
		mastery[model.SkillID(k)] = v
	}

	sel, err := s.engine.NextItem(c.Request.Context(), engine.NextItemRequest{
		CallOptions:    req.options(),
		UserID:         req.UserID,
		Domain:         req.Domain,
		MasteryBySkill: mastery,
		KnownSkills:    req.Skills,
		Pool:           req.Pool,
		RecentHistory:  req.RecentHistory,
		Locale:         req.Locale,
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	success(c, sel)
}

type feedbackRequest struct {
	callOptions
	UserID                      string               `json:"userId"`
	Item                        model.AssessmentItem `json:"item" binding:"required"`
	Response                    model.Response       `json:"response" binding:"required"`
	SkillStates                 []model.SkillState   `json:"skillStates"`
	Catalog                     *catalogPayload      `json:"catalog"`
	ImmediateCorrectionExpected bool                 `json:"immediateCorrectionExpected"`
}

func (s *Server) feedback(c *gin.Context) {
	var req feedbackRequest
	if !s.bind(c, &req) {
		return
	}
	if req.Response.SelectedOptionID != nil && req.Response.OpenAnswerText != nil {
		s.abort(c, &badRequest{errors.New("response: set selectedOptionId or openAnswerText, not both")})
		return
	}
	if req.Response.ResponseTimeMs < 0 {
		s.abort(c, &badRequest{errors.New("response.responseTimeMs must be >= 0")})
		return
	}
	cat, err := req.Catalog.build()
	if err != nil {
		s.abort(c, err)
		return
	}

	res, err := s.engine.Grade(c.Request.Context(), engine.GradeRequest{
		CallOptions:                 req.options(),
		UserID:                      req.UserID,
		Item:                        req.Item,
		Response:                    req.Response,
		SkillStates:                 req.SkillStates,
		Catalog:                     cat,
		ImmediateCorrectionExpected: req.ImmediateCorrectionExpected,
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	success(c, res)
}

type masteryUpdateRequest struct {
	UserID    string                      `json:"userId"`
	States    []model.SkillState          `json:"states"`
	Graded    []model.GradedResponse      `json:"graded" binding:"required,min=1"`
	SkillRefs map[string][]model.SkillRef `json:"skillRefs" binding:"required"`
}

func (s *Server) updateMastery(c *gin.Context) {
	var req masteryUpdateRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.engine.UpdateMastery(c.Request.Context(), engine.MasteryRequest{
		UserID:    req.UserID,
		States:    req.States,
		Graded:    req.Graded,
		SkillRefs: req.SkillRefs,
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	success(c, res)
}

type lessonsRequest struct {
	callOptions
	Domain     string `json:"domain" binding:"required"`
	NLessons   int    `json:"nLessons" binding:"required,min=1,max=20"`
	Level      string `json:"level"`
	Difficulty string `json:"difficulty"`
	Locale     string `json:"locale"`
}

func (s *Server) generateLessons(c *gin.Context) {
	var req lessonsRequest
	if !s.bind(c, &req) {
		return
	}

	lessons, err := s.engine.GenerateLessons(c.Request.Context(), engine.LessonsRequest{
		CallOptions: req.options(),
		Domain:      req.Domain,
		N:           req.NLessons,
		Level:       req.Level,
		Difficulty:  req.Difficulty,
		Locale:      req.Locale,
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	success(c, gin.H{"lessons": lessons})
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.abort(c, &badRequest{err})
		return false
	}
	return true
}
