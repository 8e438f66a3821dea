package tasks

// Priority - срочность задачи. Допустимые значения: High, Medium, Low.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// DefaultTitle подставляется, если задачу создали без заголовка.
const DefaultTitle = "Untitled Task"

// DeadlineLayout - формат, в котором дедлайн хранится в файле и сравнивается при сортировке.
const DeadlineLayout = "2006-01-02"

// Task - модель задачи.
//
// Хранится в памяти (для скорости) и сериализуется в JSON (для API и файла).
// Порядок полей в JSON: id, title, deadline, priority, notes.
type Task struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Deadline string   `json:"deadline"`
	Priority Priority `json:"priority"`
	Notes    string   `json:"notes"`
}

// CreateTaskRequest описывает контракт входящих данных для создания задачи.
//
// Title и Deadline необязательны: пустой заголовок заменяется на DefaultTitle,
// пустой дедлайн - на сегодняшнюю дату. Deadline проверяется уже после нормализации.
type CreateTaskRequest struct {
	Title    string `json:"title" validate:"max=200"`
	Deadline string `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Priority string `json:"priority" validate:"required,oneof=High Medium Low"`
	Notes    string `json:"notes" validate:"max=5000"`
}
