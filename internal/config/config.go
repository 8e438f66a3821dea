// Package config загружает настройки сервиса: файл конфигурации (необязательный)
// плюс переменные окружения с префиксом PLANNER_.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"task-planner/internal/tasks"
)

const envPrefix = "PLANNER"

// AgenticStore - имя второго, независимого хранилища задач.
const AgenticStore = "agentic"

// Config хранит все настройки процесса.
type Config struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Debug          bool          `mapstructure:"debug"`

	TasksFile        string `mapstructure:"tasks_file"`
	AgenticTasksFile string `mapstructure:"agentic_tasks_file"`
	AlertWindowDays  int    `mapstructure:"alert_window_days"`

	// AI
	KeyFile   string        `mapstructure:"key_file"`
	AIModel   string        `mapstructure:"ai_model"`
	AIBaseURL string        `mapstructure:"ai_base_url"`
	AITimeout time.Duration `mapstructure:"ai_timeout"`

	// Чат-сессии: пустой RedisURL означает хранение в памяти.
	RedisURL   string        `mapstructure:"redis_url"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("request_timeout", 5*time.Second)
	v.SetDefault("debug", false)
	v.SetDefault("tasks_file", "tasks.json")
	v.SetDefault("agentic_tasks_file", "tasks_agentic.json")
	v.SetDefault("alert_window_days", tasks.DefaultAlertWindow)
	v.SetDefault("key_file", "key.txt")
	v.SetDefault("ai_model", "llama-3.1-8b-instant")
	v.SetDefault("ai_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai_timeout", 60*time.Second)
	v.SetDefault("redis_url", "")
	v.SetDefault("session_ttl", 24*time.Hour)
}

// Load читает настройки. path может быть пустым: тогда используются только
// значения по умолчанию и переменные окружения (PLANNER_LISTEN_ADDR, PLANNER_KEY_FILE, ...).
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TasksFile == "" || c.AgenticTasksFile == "" {
		return errors.New("task file paths must not be empty")
	}
	if c.TasksFile == c.AgenticTasksFile {
		return errors.New("tasks_file and agentic_tasks_file must differ")
	}
	if c.AlertWindowDays < 0 {
		return errors.New("alert_window_days must be >= 0")
	}
	if c.AITimeout <= 0 {
		return errors.New("ai_timeout must be > 0")
	}
	return nil
}

// StoreFiles возвращает именованные хранилища задач.
func (c Config) StoreFiles() map[string]string {
	return map[string]string{
		tasks.DefaultStore: c.TasksFile,
		AgenticStore:       c.AgenticTasksFile,
	}
}

// ReadAPIKey читает секрет из текстового файла. Пустой файл тоже считается ошибкой.
func ReadAPIKey(path string) (string, error) {
	if path == "" {
		return "", errors.New("key file not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("key file %s is empty", path)
	}
	return key, nil
}
