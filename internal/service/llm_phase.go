package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"taskledger/internal/model"
)

const workerInstructions = `You maintain a personal task dashboard in the background.
Review the dashboard, the pending reminders and the questions the user has answered since the last run.
For every answered question, apply its consequences: update the related task, save an insight when the answer teaches something durable, or schedule a reminder.
Schedule reminders for approaching deadlines and blocked tasks when none exist yet. Do not duplicate reminders or questions that already exist.
Only use the provided tools. Reply without tool calls when nothing else needs doing.`

// runLLMPhase adds completion follow-ups and then lets the model act on
// the dashboard through the worker tools.
func (w *WorkerAgent) runLLMPhase(ctx context.Context, answered []model.Question) error {
	ctx = WithCreator(ctx, model.CreatedByWorker)

	if err := w.ensureCompletionChecks(ctx); err != nil {
		return fmt.Errorf("completion checks: %w", err)
	}

	prompt, err := w.buildPrompt(ctx, answered)
	if err != nil {
		return err
	}
	tools := w.toolbox.Tools(WorkerTools...)
	conv := w.model.NewConversation(workerInstructions, prompt, Specs(tools))

	for i := 0; i < w.maxIterations; i++ {
		reply, err := conv.Step(ctx)
		if err != nil {
			return err
		}
		if len(reply.ToolCalls) == 0 {
			log.Printf("[worker] llm phase done after %d steps", i+1)
			return nil
		}
		for _, call := range reply.ToolCalls {
			result, err := w.callWorkerTool(ctx, call.Name, call.Arguments)
			if err != nil {
				result = "Error: " + err.Error()
			}
			log.Printf("[worker] tool %s -> %s", call.Name, firstLine(result))
			conv.AddToolResult(call.ID, result)
		}
	}
	log.Printf("[warn] llm phase hit the %d step limit", w.maxIterations)
	return nil
}

func (w *WorkerAgent) callWorkerTool(ctx context.Context, name, args string) (string, error) {
	allowed := false
	for _, n := range WorkerTools {
		if n == name {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("tool %q is not available to the worker", name)
	}
	return w.toolbox.Call(ctx, name, json.RawMessage(args))
}

// ensureCompletionChecks asks whether the task behind each delivered
// reminder got done. One completion_check per task, ever: an existing one,
// answered or not, is linked instead of creating another.
func (w *WorkerAgent) ensureCompletionChecks(ctx context.Context) error {
	ledger, err := w.store.LoadNotifications(ctx)
	if err != nil {
		return err
	}
	tasks, err := w.store.LoadTasks(ctx)
	if err != nil {
		return err
	}
	questions, err := w.store.LoadQuestions(ctx)
	if err != nil {
		return err
	}

	existing := make(map[string]string)
	for _, q := range questions.Questions {
		if q.Type == model.QuestionCompletionCheck && q.RelatedTaskID != "" {
			existing[q.RelatedTaskID] = q.ID
		}
	}

	created, linked := 0, 0
	for i := range ledger.Notifications {
		n := &ledger.Notifications[i]
		if n.Status != model.NotificationDelivered || n.RelatedTaskID == "" || n.FollowUpQuestionID != "" {
			continue
		}
		task := tasks.FindTask(n.RelatedTaskID)
		if task == nil || !task.IsOpen() {
			continue
		}
		if qid, ok := existing[task.ID]; ok {
			n.FollowUpQuestionID = qid
			linked++
			continue
		}
		q := model.Question{
			ID:            model.NewID(model.QuestionIDPrefix),
			Question:      fmt.Sprintf("Did you get \"%s\" done?", task.Title),
			Context:       "Follow-up to reminder: " + n.Message,
			Priority:      model.PriorityMedium,
			Type:          model.QuestionCompletionCheck,
			RelatedTaskID: task.ID,
			CooldownHours: model.DefaultCooldownHours,
			CreatedAt:     w.now(),
		}
		questions.Questions = append(questions.Questions, q)
		existing[task.ID] = q.ID
		n.FollowUpQuestionID = q.ID
		created++
	}
	if created+linked == 0 {
		return nil
	}

	if created > 0 {
		if err := w.store.SaveQuestions(ctx, questions); err != nil {
			return err
		}
	}
	if err := w.store.SaveNotifications(ctx, ledger); err != nil {
		return err
	}
	log.Printf("[worker] completion checks: %d created, %d linked", created, linked)
	return nil
}

func (w *WorkerAgent) buildPrompt(ctx context.Context, answered []model.Question) (string, error) {
	now := w.now()
	summary, err := w.reminders.DailySummary(ctx, now)
	if err != nil {
		return "", err
	}
	pending, err := w.reminders.PendingSummary(ctx, now)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Current time: " + now.Format("2006-01-02 15:04 MST") + "\n\n")
	sb.WriteString(summary + "\n\n" + pending + "\n\n")
	if len(answered) == 0 {
		sb.WriteString("No newly answered questions.")
	} else {
		sb.WriteString("Newly answered questions:\n")
		data, err := json.MarshalIndent(answered, "", "  ")
		if err != nil {
			return "", err
		}
		sb.Write(data)
	}
	return sb.String(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
