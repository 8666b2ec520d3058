package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskledger/internal/llm"
	"taskledger/internal/model"
	"taskledger/internal/repository"
)

// 2026-03-04 is a Wednesday.
var workerNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

type workerHarness struct {
	store   *repository.Store
	docs    *repository.MemoryDocuments
	clk     *clock
	trigger *countingTrigger
	tasks   *TaskService
	worker  *WorkerAgent
}

func newWorkerHarness(t *testing.T, chat llm.ChatModel) *workerHarness {
	t.Helper()
	store, docs := newTestStore(t)
	clk := newClock(workerNow)
	tasks := NewTaskService(store, clk.Now)
	reminders := NewReminderService(store)
	toolbox := NewToolbox(tasks, NewQuestionService(store, clk.Now), NewNotificationService(store, clk.Now),
		NewInsightService(store, clk.Now), reminders, clk.Now)
	trigger := &countingTrigger{}
	worker := NewWorkerAgent(store, trigger, toolbox, reminders, WorkerOptions{Model: chat, Now: clk.Now})
	return &workerHarness{store: store, docs: docs, clk: clk, trigger: trigger, tasks: tasks, worker: worker}
}

func (h *workerHarness) seedTasks(t *testing.T, tasks ...model.Task) {
	t.Helper()
	if err := h.store.SaveTasks(context.Background(), &model.TaskFile{Tasks: tasks}); err != nil {
		t.Fatalf("seed tasks: %v", err)
	}
}

func (h *workerHarness) seedQuestions(t *testing.T, qs ...model.Question) {
	t.Helper()
	if err := h.store.SaveQuestions(context.Background(), &model.QuestionFile{Questions: qs}); err != nil {
		t.Fatalf("seed questions: %v", err)
	}
}

func (h *workerHarness) task(t *testing.T, id string) model.Task {
	t.Helper()
	f, err := h.store.LoadTasks(context.Background())
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	task := f.FindTask(id)
	if task == nil {
		t.Fatalf("task %s not found", id)
	}
	return *task
}

func (h *workerHarness) questions(t *testing.T) []model.Question {
	t.Helper()
	f, err := h.store.LoadQuestions(context.Background())
	if err != nil {
		t.Fatalf("LoadQuestions: %v", err)
	}
	return f.Questions
}

func (h *workerHarness) run(t *testing.T) {
	t.Helper()
	if err := h.worker.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
}

func dailyTask(id string, created time.Time) model.Task {
	return model.Task{
		ID:        id,
		Title:     "morning run",
		Status:    model.TaskActive,
		Priority:  model.PriorityMedium,
		CreatedAt: created,
		Recurring: &model.Recurring{Enabled: true, DaysOfWeek: []int{0, 1, 2, 3, 4, 5, 6}},
	}
}

func answered(id, taskID string, created time.Time) model.Question {
	at := created.Add(time.Hour)
	return model.Question{
		ID:            id,
		Question:      "question " + id,
		Priority:      model.PriorityMedium,
		Type:          model.QuestionInfoGather,
		RelatedTaskID: taskID,
		CooldownHours: 24,
		Answered:      true,
		Answer:        "yes",
		AnsweredAt:    &at,
		CreatedAt:     created,
	}
}

func TestRecurringTaskIsResetNotArchived(t *testing.T) {
	h := newWorkerHarness(t, nil)
	task := dailyTask("task_run", workerNow.AddDate(0, -1, 0))
	task.Recurring.StreakCurrent = 3
	task.Recurring.StreakBest = 3
	task.Recurring.TotalCompleted = 3
	task.Recurring.LastCompletedDate = "2026-03-03"
	h.seedTasks(t, task)

	if _, err := h.tasks.CompleteTask(context.Background(), "task_run"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	h.run(t)

	got := h.task(t, "task_run")
	if got.Status != model.TaskActive || got.Progress.Percentage != 0 || got.CompletedAt != nil {
		t.Fatalf("recurring task not reset: status=%s progress=%d completed_at=%v", got.Status, got.Progress.Percentage, got.CompletedAt)
	}
	rec := got.Recurring
	if rec.StreakCurrent != 4 || rec.StreakBest != 4 || rec.TotalCompleted != 4 || rec.LastCompletedDate != "2026-03-04" {
		t.Fatalf("stats = %+v", *rec)
	}
	if h.trigger.n != 1 {
		t.Fatalf("scheduler triggered %d times, want 1", h.trigger.n)
	}

	// A second completion on the same day does not count twice.
	if _, err := h.tasks.CompleteTask(context.Background(), "task_run"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	h.run(t)
	if rec := h.task(t, "task_run").Recurring; rec.TotalCompleted != 4 || rec.StreakCurrent != 4 {
		t.Fatalf("same-day completion counted again: %+v", *rec)
	}
}

func TestRecurringMissIsCountedOnce(t *testing.T) {
	h := newWorkerHarness(t, nil)
	task := dailyTask("task_run", workerNow.AddDate(0, -1, 0))
	task.Recurring.StreakCurrent = 5
	task.Recurring.StreakBest = 5
	task.Recurring.LastCompletedDate = "2026-03-01"
	h.seedTasks(t, task)

	h.run(t)
	h.run(t)

	rec := h.task(t, "task_run").Recurring
	if rec.StreakCurrent != 0 || rec.StreakBest != 5 || rec.TotalMissed != 1 || rec.LastMissDate != "2026-03-03" {
		t.Fatalf("stats = %+v", *rec)
	}
}

func TestNewRecurringTaskIsNotPenalised(t *testing.T) {
	h := newWorkerHarness(t, nil)
	h.seedTasks(t, dailyTask("task_new", workerNow.Add(-25*time.Hour)))

	h.run(t)

	if rec := h.task(t, "task_new").Recurring; rec.TotalMissed != 0 || rec.LastMissDate != "" {
		t.Fatalf("brand-new task counted as missed: %+v", *rec)
	}
}

func TestTerminalTasksAreArchived(t *testing.T) {
	h := newWorkerHarness(t, nil)
	created := workerNow.AddDate(0, 0, -3)
	done := model.Task{ID: "task_done", Title: "file taxes", Status: model.TaskCompleted, Priority: model.PriorityHigh, CreatedAt: created}
	dropped := model.Task{ID: "task_dropped", Title: "learn banjo", Status: model.TaskCancelled, Priority: model.PriorityLow, CreatedAt: created,
		Progress: model.Progress{Percentage: 40}}
	habit := dailyTask("task_habit", created)
	habit.Status = model.TaskCancelled
	h.seedTasks(t, done, dropped, habit)

	h.run(t)

	if got := h.task(t, "task_done"); got.Status != model.TaskArchived || got.Progress.Percentage != 100 || got.CompletedAt == nil {
		t.Fatalf("completed task: %+v", got)
	}
	if got := h.task(t, "task_dropped"); got.Status != model.TaskArchived || got.Progress.Percentage != 40 {
		t.Fatalf("cancelled task: %+v", got)
	}
	if got := h.task(t, "task_habit"); got.Status != model.TaskArchived || got.Recurring.Enabled {
		t.Fatalf("cancelled habit: status=%s recurring=%+v", got.Status, *got.Recurring)
	}
}

func TestReevaluateMovesTasksBetweenActiveAndSomeday(t *testing.T) {
	h := newWorkerHarness(t, nil)
	old := workerNow.AddDate(0, -1, 0)
	soon := workerNow.AddDate(0, 0, 3)
	h.seedTasks(t,
		model.Task{ID: "task_idle", Title: "sort photos", Status: model.TaskActive, Priority: model.PriorityMedium, CreatedAt: old},
		model.Task{ID: "task_due", Title: "renew passport", Status: model.TaskSomeday, Priority: model.PriorityLow, CreatedAt: old, Deadline: &soon},
		model.Task{ID: "task_fresh", Title: "buy paint", Status: model.TaskActive, Priority: model.PriorityLow, CreatedAt: workerNow.AddDate(0, 0, -1)},
	)

	h.run(t)

	for id, want := range map[string]model.TaskStatus{
		"task_idle":  model.TaskSomeday,
		"task_due":   model.TaskActive,
		"task_fresh": model.TaskActive,
	} {
		if got := h.task(t, id).Status; got != want {
			t.Errorf("%s status = %s, want %s", id, got, want)
		}
	}
}

func TestConsistencyRepairsProgress(t *testing.T) {
	h := newWorkerHarness(t, nil)
	h.seedTasks(t, model.Task{ID: "task_full", Title: "paint fence", Status: model.TaskActive, Priority: model.PriorityMedium,
		CreatedAt: workerNow.AddDate(0, 0, -2), Progress: model.Progress{Percentage: 100}})

	h.run(t)

	if got := h.task(t, "task_full"); got.Status != model.TaskArchived || got.CompletedAt == nil {
		t.Fatalf("fully progressed task: status=%s completed_at=%v", got.Status, got.CompletedAt)
	}
}

func TestBootstrapFillsMissingMetadata(t *testing.T) {
	h := newWorkerHarness(t, nil)
	ctx := context.Background()
	raw := map[string]string{
		repository.CollectionTasks:         `{"tasks":[{"title":"water plants","progress":{"percentage":0}}]}`,
		repository.CollectionQuestions:     `{"questions":[{"question":"Which plants?","answer":"the ferns"}]}`,
		repository.CollectionNotifications: `{"notifications":[{"message":"water","scheduled_at":"2026-03-05T09:00:00Z"}]}`,
		repository.CollectionInsights:      `{"insights":[{"title":"ferns","content":"like humidity"}]}`,
	}
	for name, doc := range raw {
		if err := h.docs.Save(ctx, name, []byte(doc)); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	h.run(t)

	tasks, _ := h.store.LoadTasks(ctx)
	if tk := tasks.Tasks[0]; !strings.HasPrefix(tk.ID, model.TaskIDPrefix) || tk.CreatedAt.IsZero() || tk.Status != model.TaskActive || tk.Priority != model.PriorityMedium {
		t.Fatalf("task not bootstrapped: %+v", tk)
	}
	qs := h.questions(t)
	if q := qs[0]; !strings.HasPrefix(q.ID, model.QuestionIDPrefix) || !q.Answered || q.AnsweredAt == nil || q.CooldownHours != model.DefaultCooldownHours {
		t.Fatalf("question not bootstrapped: %+v", q)
	}
	ledger, _ := h.store.LoadNotifications(ctx)
	if n := ledger.Notifications[0]; !strings.HasPrefix(n.ID, model.NotificationIDPrefix) || n.Status != model.NotificationPending || n.CreatedBy != model.CreatedByUser {
		t.Fatalf("notification not bootstrapped: %+v", n)
	}
	insights, _ := h.store.LoadInsights(ctx)
	if in := insights.Insights[0]; !strings.HasPrefix(in.ID, model.InsightIDPrefix) || in.Category != model.InsightLife {
		t.Fatalf("insight not bootstrapped: %+v", in)
	}
}

func TestCleanupKeepsAnsweredWhenLLMPhaseFails(t *testing.T) {
	h := newWorkerHarness(t, &scriptedModel{err: errors.New("model unavailable")})
	h.seedTasks(t, model.Task{ID: "task_a", Title: "a", Status: model.TaskActive, Priority: model.PriorityHigh, CreatedAt: workerNow})
	h.seedQuestions(t, answered("q_done", "task_a", workerNow.Add(-2*time.Hour)))

	if err := h.worker.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle returned %v; model failures must not fail the cycle", err)
	}
	if qs := h.questions(t); len(qs) != 1 {
		t.Fatalf("answered question lost after failed llm phase: %d left", len(qs))
	}
	if h.trigger.n != 1 {
		t.Fatalf("scheduler not triggered after degraded cycle")
	}
}

func TestCleanupConsumesAnsweredAfterLLMPhase(t *testing.T) {
	chat := &scriptedModel{}
	h := newWorkerHarness(t, chat)
	h.seedTasks(t, model.Task{ID: "task_a", Title: "a", Status: model.TaskActive, Priority: model.PriorityHigh, CreatedAt: workerNow})
	var qs []model.Question
	for i := 0; i < maxAnsweredInContext+5; i++ {
		qs = append(qs, answered(model.NewID(model.QuestionIDPrefix), "task_a", workerNow.Add(-time.Hour)))
	}
	h.seedQuestions(t, qs...)

	h.run(t)

	if left := h.questions(t); len(left) != 5 {
		t.Fatalf("answered left = %d, want 5 queued for the next cycle", len(left))
	}
	if !strings.Contains(chat.user, "Newly answered questions") {
		t.Fatalf("prompt missing answered questions:\n%s", chat.user)
	}
}

func TestCleanupDropsStaleOrphanedAndDuplicateQuestions(t *testing.T) {
	h := newWorkerHarness(t, nil)
	h.seedTasks(t,
		model.Task{ID: "task_live", Title: "live", Status: model.TaskActive, Priority: model.PriorityHigh, CreatedAt: workerNow},
		model.Task{ID: "task_gone", Title: "gone", Status: model.TaskArchived, Priority: model.PriorityLow, CreatedAt: workerNow.AddDate(0, 0, -3)},
	)
	open := func(id, text, taskID string, created time.Time) model.Question {
		return model.Question{ID: id, Question: text, Priority: model.PriorityMedium, Type: model.QuestionProgressCheck,
			RelatedTaskID: taskID, CooldownHours: 24, CreatedAt: created}
	}
	h.seedQuestions(t,
		open("q_keep", "How is it going?", "task_live", workerNow.Add(-time.Hour)),
		open("q_dup", "how is it   going?", "task_live", workerNow.Add(-time.Hour)),
		open("q_orphan", "Still on it?", "task_gone", workerNow.Add(-time.Hour)),
		open("q_stale", "Any news?", "", workerNow.AddDate(0, 0, -20)),
		answered("q_answered", "task_live", workerNow.AddDate(0, 0, -30)),
	)

	h.run(t)

	var ids []string
	for _, q := range h.questions(t) {
		ids = append(ids, q.ID)
	}
	if got := strings.Join(ids, ","); got != "q_keep,q_answered" {
		t.Fatalf("questions left = %s", got)
	}
}

func TestLLMPhaseRunsWorkerTools(t *testing.T) {
	chat := &scriptedModel{replies: []llm.Reply{
		{ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "schedule_notification", Arguments: `{"message":"check the oven","scheduled_at":"in 2 hours","related_task_id":"task_a"}`},
			{ID: "c2", Name: "create_task", Arguments: `{"title":"not allowed"}`},
		}},
		{Content: "done"},
	}}
	h := newWorkerHarness(t, chat)
	h.seedTasks(t, model.Task{ID: "task_a", Title: "bake", Status: model.TaskActive, Priority: model.PriorityHigh, CreatedAt: workerNow})

	h.run(t)

	if len(chat.results) != 2 {
		t.Fatalf("tool results = %v", chat.results)
	}
	if !strings.HasPrefix(chat.results[0], "Scheduled notification") {
		t.Fatalf("schedule result = %q", chat.results[0])
	}
	if !strings.HasPrefix(chat.results[1], "Error:") {
		t.Fatalf("disallowed tool result = %q", chat.results[1])
	}
	for _, spec := range chat.tools {
		if spec.Name == "create_task" {
			t.Fatalf("create_task offered to the worker")
		}
	}

	ledger, _ := h.store.LoadNotifications(context.Background())
	if len(ledger.Notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(ledger.Notifications))
	}
	n := ledger.Notifications[0]
	if n.CreatedBy != model.CreatedByWorker || !n.ScheduledAt.Equal(workerNow.Add(2*time.Hour)) {
		t.Fatalf("notification = %+v", n)
	}
	tasks, _ := h.store.LoadTasks(context.Background())
	if len(tasks.Tasks) != 1 {
		t.Fatalf("worker created a task")
	}
}

func TestLLMPhaseStopsAtIterationLimit(t *testing.T) {
	call := llm.Reply{ToolCalls: []llm.ToolCall{{ID: "c", Name: "list_notifications", Arguments: `{}`}}}
	var replies []llm.Reply
	for i := 0; i < 20; i++ {
		replies = append(replies, call)
	}
	chat := &scriptedModel{replies: replies}
	h := newWorkerHarness(t, chat)

	h.run(t)

	if len(chat.results) != 10 {
		t.Fatalf("tool calls = %d, want the 10 step limit", len(chat.results))
	}
}

func TestCompletionCheckIsCreatedOncePerTask(t *testing.T) {
	h := newWorkerHarness(t, &scriptedModel{})
	ctx := context.Background()
	h.seedTasks(t, model.Task{ID: "task_a", Title: "call mom", Status: model.TaskActive, Priority: model.PriorityHigh, CreatedAt: workerNow})

	delivered := func(id string) model.Notification {
		n := pendingNotification(id, workerNow.Add(-time.Hour), workerNow.Add(-2*time.Hour))
		n.RelatedTaskID = "task_a"
		n.MarkDelivered(workerNow.Add(-time.Hour))
		return n
	}
	seedNotifications(t, h.store, delivered("n_1"), delivered("n_2"))

	h.run(t)
	h.run(t)

	var checks []model.Question
	for _, q := range h.questions(t) {
		if q.Type == model.QuestionCompletionCheck {
			checks = append(checks, q)
		}
	}
	if len(checks) != 1 {
		t.Fatalf("completion checks = %d, want 1", len(checks))
	}
	ledger, _ := h.store.LoadNotifications(ctx)
	for _, n := range ledger.Notifications {
		if n.FollowUpQuestionID != checks[0].ID {
			t.Fatalf("%s follow-up = %q, want %s", n.ID, n.FollowUpQuestionID, checks[0].ID)
		}
	}
}

func TestCompletionCheckLinksExistingAnsweredQuestion(t *testing.T) {
	h := newWorkerHarness(t, &scriptedModel{err: errors.New("offline")})
	h.seedTasks(t, model.Task{ID: "task_a", Title: "call mom", Status: model.TaskActive, Priority: model.PriorityHigh, CreatedAt: workerNow})
	prior := answered("q_prior", "task_a", workerNow.Add(-3*time.Hour))
	prior.Type = model.QuestionCompletionCheck
	h.seedQuestions(t, prior)

	n := pendingNotification("n_1", workerNow.Add(-time.Hour), workerNow.Add(-2*time.Hour))
	n.RelatedTaskID = "task_a"
	n.MarkDelivered(workerNow.Add(-time.Hour))
	seedNotifications(t, h.store, n)

	h.run(t)

	if qs := h.questions(t); len(qs) != 1 {
		t.Fatalf("questions = %d, want only the existing check", len(qs))
	}
	if got := loadNotification(t, h.store, "n_1").FollowUpQuestionID; got != "q_prior" {
		t.Fatalf("follow-up = %q, want q_prior", got)
	}
}

func TestSafeStepRecoversPanic(t *testing.T) {
	err := safeStep("explode", func() error { panic("boom") })
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("safeStep = %v", err)
	}
}
