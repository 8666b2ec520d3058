package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"taskledger/internal/llm"
	"taskledger/internal/model"
	"taskledger/internal/repository"
)

// Trigger is satisfied by ReconciliationScheduler.
type Trigger interface {
	Trigger(ctx context.Context)
}

type WorkerOptions struct {
	// Model enables the LLM phase. Nil means deterministic maintenance only.
	Model         llm.ChatModel
	MaxIterations int
	Now           func() time.Time
}

// WorkerAgent runs the periodic maintenance cycle.
type WorkerAgent struct {
	store     *repository.Store
	scheduler Trigger
	toolbox   *Toolbox
	reminders *ReminderService

	model         llm.ChatModel
	maxIterations int
	now           func() time.Time
}

func NewWorkerAgent(store *repository.Store, scheduler Trigger, toolbox *Toolbox, reminders *ReminderService, opts WorkerOptions) *WorkerAgent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &WorkerAgent{
		store:         store,
		scheduler:     scheduler,
		toolbox:       toolbox,
		reminders:     reminders,
		model:         opts.Model,
		maxIterations: opts.MaxIterations,
		now:           opts.Now,
	}
}

// RunCycle runs one full maintenance cycle. The caller must hold the
// processing lock. The returned error covers Phase 1 and cleanup only;
// LLM phase failures are logged and degrade the cycle instead.
func (w *WorkerAgent) RunCycle(ctx context.Context) error {
	began := time.Now()
	now := w.now()
	log.Printf("[worker] cycle started")

	var errs []error
	if err := safeStep("bootstrap", func() error { return w.bootstrap(ctx, now) }); err != nil {
		errs = append(errs, err)
	}
	if err := safeStep("task maintenance", func() error { return w.maintainTasks(ctx, now) }); err != nil {
		errs = append(errs, err)
	}

	var snapshot []model.Question
	if err := safeStep("extract answered", func() error {
		qs, err := w.store.LoadQuestions(ctx)
		if err != nil {
			return err
		}
		snapshot = answeredSnapshot(qs.Questions)
		return nil
	}); err != nil {
		errs = append(errs, err)
	}

	phase2OK := false
	if w.model != nil {
		if err := safeStep("llm phase", func() error { return w.runLLMPhase(ctx, snapshot) }); err != nil {
			log.Printf("[worker] continuing with deterministic maintenance only")
		} else {
			phase2OK = true
		}
	}

	if err := safeStep("cleanup", func() error { return w.cleanup(ctx, snapshot, phase2OK) }); err != nil {
		errs = append(errs, err)
	}

	if w.scheduler != nil {
		w.scheduler.Trigger(ctx)
	}
	log.Printf("[worker] cycle finished in %s (llm phase ok=%t)", time.Since(began).Round(time.Millisecond), phase2OK)
	return errors.Join(errs...)
}

// safeStep runs fn and turns a panic into an error so later steps still run.
func safeStep(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[error] worker %s panicked: %v\n%s", name, r, debug.Stack())
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	if err = fn(); err != nil {
		log.Printf("[error] worker %s: %v", name, err)
		err = fmt.Errorf("%s: %w", name, err)
	}
	return err
}

// maintainTasks applies consistency, recurring, archive and re-evaluation
// rules, then saves the task collection once.
func (w *WorkerAgent) maintainTasks(ctx context.Context, now time.Time) error {
	tasks, err := w.store.LoadTasks(ctx)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	rules := []struct {
		name  string
		apply func(*model.Task, time.Time) bool
	}{
		{"consistency", enforceConsistency},
		{"recurring completion", recordCompletion},
		{"recurring miss", recordMiss},
		{"archive", archiveIfTerminal},
		{"reevaluate", reevaluate},
	}
	for _, rule := range rules {
		_ = safeStep(rule.name, func() error {
			for i := range tasks.Tasks {
				if rule.apply(&tasks.Tasks[i], now) {
					counts[rule.name]++
				}
			}
			return nil
		})
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return nil
	}
	log.Printf("[worker] task maintenance: %v", counts)
	return w.store.SaveTasks(ctx, tasks)
}

func (w *WorkerAgent) cleanup(ctx context.Context, snapshot []model.Question, phase2OK bool) error {
	questions, err := w.store.LoadQuestions(ctx)
	if err != nil {
		return err
	}
	tasks, err := w.store.LoadTasks(ctx)
	if err != nil {
		return err
	}

	live := make(map[string]bool, len(tasks.Tasks))
	for _, t := range tasks.Tasks {
		if t.Status != model.TaskArchived {
			live[t.ID] = true
		}
	}
	consumed := make(map[string]bool)
	if phase2OK {
		for _, q := range snapshot {
			consumed[q.ID] = true
		}
	}

	kept, removed := cleanupQuestions(questions.Questions, live, consumed, w.now())
	if removed == 0 {
		return nil
	}
	questions.Questions = kept
	log.Printf("[worker] cleanup removed %d questions", removed)
	return w.store.SaveQuestions(ctx, questions)
}
