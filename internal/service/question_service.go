package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskledger/internal/model"
	"taskledger/internal/repository"
)

type QuestionInput struct {
	Question      string
	Context       string
	Priority      model.Priority
	Type          model.QuestionType
	RelatedTaskID string
	CooldownHours int
}

type QuestionUpdate struct {
	Question      *string
	Context       *string
	Priority      *model.Priority
	CooldownHours *int
}

type QuestionService struct {
	store *repository.Store
	now   func() time.Time
}

func NewQuestionService(store *repository.Store, now func() time.Time) *QuestionService {
	if now == nil {
		now = time.Now
	}
	return &QuestionService{store: store, now: now}
}

func (s *QuestionService) CreateQuestion(ctx context.Context, input QuestionInput) (*model.Question, error) {
	text := strings.TrimSpace(input.Question)
	if text == "" {
		return nil, fmt.Errorf("question text is required")
	}
	q := model.Question{
		ID:            model.NewID(model.QuestionIDPrefix),
		Question:      text,
		Context:       input.Context,
		Priority:      input.Priority,
		Type:          input.Type,
		RelatedTaskID: input.RelatedTaskID,
		CooldownHours: input.CooldownHours,
		CreatedAt:     s.now(),
	}
	if q.Priority == "" {
		q.Priority = model.PriorityMedium
	}
	if q.Type == "" {
		q.Type = model.QuestionInfoGather
	}
	if q.CooldownHours <= 0 {
		q.CooldownHours = model.DefaultCooldownHours
	}

	questions, err := s.store.LoadQuestions(ctx)
	if err != nil {
		return nil, err
	}
	questions.Questions = append(questions.Questions, q)
	if err := s.store.SaveQuestions(ctx, questions); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return &q, nil
}

func (s *QuestionService) UpdateQuestion(ctx context.Context, id string, upd QuestionUpdate) (*model.Question, error) {
	questions, err := s.store.LoadQuestions(ctx)
	if err != nil {
		return nil, err
	}
	q := questions.FindQuestion(id)
	if q == nil {
		return nil, fmt.Errorf("%w: question %s", ErrNotFound, id)
	}
	if upd.Question != nil {
		q.Question = strings.TrimSpace(*upd.Question)
	}
	if upd.Context != nil {
		q.Context = *upd.Context
	}
	if upd.Priority != nil {
		q.Priority = *upd.Priority
	}
	if upd.CooldownHours != nil {
		q.CooldownHours = *upd.CooldownHours
	}
	if err := s.store.SaveQuestions(ctx, questions); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	out := *q
	return &out, nil
}

func (s *QuestionService) RemoveQuestion(ctx context.Context, id string) error {
	questions, err := s.store.LoadQuestions(ctx)
	if err != nil {
		return err
	}
	kept := questions.Questions[:0]
	found := false
	for _, q := range questions.Questions {
		if q.ID == id {
			found = true
			continue
		}
		kept = append(kept, q)
	}
	if !found {
		return fmt.Errorf("%w: question %s", ErrNotFound, id)
	}
	questions.Questions = kept
	if err := s.store.SaveQuestions(ctx, questions); err != nil {
		return fmt.Errorf("remove question: %w", err)
	}
	return nil
}

// AnswerQuestion records the user's answer. The worker picks it up on its
// next cycle.
func (s *QuestionService) AnswerQuestion(ctx context.Context, id, answer string) (*model.Question, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("answer is required")
	}
	questions, err := s.store.LoadQuestions(ctx)
	if err != nil {
		return nil, err
	}
	q := questions.FindQuestion(id)
	if q == nil {
		return nil, fmt.Errorf("%w: question %s", ErrNotFound, id)
	}
	now := s.now()
	q.Answered = true
	q.Answer = answer
	q.AnsweredAt = &now
	if err := s.store.SaveQuestions(ctx, questions); err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}
	out := *q
	return &out, nil
}

// NextQuestion picks the most important unanswered question whose cooldown
// has passed and records that it was asked. It returns nil when nothing can
// be asked right now.
func (s *QuestionService) NextQuestion(ctx context.Context) (*model.Question, error) {
	questions, err := s.store.LoadQuestions(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var candidates []*model.Question
	for i := range questions.Questions {
		q := &questions.Questions[i]
		if !q.IsAnswered() && q.CanAsk(now) {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := priorityRank(candidates[i].Priority), priorityRank(candidates[j].Priority)
		if pi != pj {
			return pi > pj
		}
		return candidates[i].AskedCount < candidates[j].AskedCount
	})

	q := candidates[0]
	q.AskedCount++
	q.LastAskedAt = &now
	if err := s.store.SaveQuestions(ctx, questions); err != nil {
		return nil, fmt.Errorf("record ask: %w", err)
	}
	out := *q
	return &out, nil
}

func (s *QuestionService) ListQuestions(ctx context.Context, includeAnswered bool) ([]model.Question, error) {
	questions, err := s.store.LoadQuestions(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Question
	for _, q := range questions.Questions {
		if includeAnswered || !q.IsAnswered() {
			out = append(out, q)
		}
	}
	return out, nil
}

func priorityRank(p model.Priority) int {
	switch p {
	case model.PriorityHigh:
		return 2
	case model.PriorityMedium:
		return 1
	default:
		return 0
	}
}
