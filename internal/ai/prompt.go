package ai

import (
	"fmt"

	"github.com/bytedance/sonic"

	"task-planner/internal/tasks"
)

const plannerPersona = "You are an AI task planner. Organize the user's tasks by priority and urgency."

// ChatPersona - системное сообщение, с которого начинается новая чат-сессия.
const ChatPersona = "You are a personal assistant AI. Help the user organize their tasks and answer questions about them."

// promptTask фиксирует порядок полей в промпте: title, deadline, priority, notes.
// ID модели не нужен.
type promptTask struct {
	Title    string `json:"title"`
	Deadline string `json:"deadline"`
	Priority string `json:"priority"`
	Notes    string `json:"notes"`
}

// EncodeTasks сериализует задачи в JSON с отступом в два пробела.
func EncodeTasks(list []tasks.Task) (string, error) {
	out := make([]promptTask, 0, len(list))
	for _, t := range list {
		out = append(out, promptTask{
			Title:    t.Title,
			Deadline: t.Deadline,
			Priority: string(t.Priority),
			Notes:    t.Notes,
		})
	}
	data, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode tasks: %w", err)
	}
	return string(data), nil
}

func planPrompt(list []tasks.Task) (string, error) {
	encoded, err := EncodeTasks(list)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("My tasks:\n%s\nProvide a clear daily plan in bullet points.", encoded), nil
}

// ChatSystemPrompt собирает системное сообщение для новой чат-сессии со снимком задач.
func ChatSystemPrompt(list []tasks.Task) (string, error) {
	encoded, err := EncodeTasks(list)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\nThe user's current tasks:\n%s", ChatPersona, encoded), nil
}
