// Package cmdutil общие помощники команд клиента
package cmdutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"worksync/internal/app/client"
	"worksync/internal/domain/entity"
)

type appKey struct{}

var (
	OK   = color.New(color.FgGreen).SprintFunc()
	Warn = color.New(color.FgYellow).SprintFunc()
	Fail = color.New(color.FgRed).SprintFunc()
	Dim  = color.New(color.Faint).SprintFunc()
)

// JSONOutput вывод в JSON вместо текста; выставляется флагом --json
var JSONOutput bool

func WithApp(ctx context.Context, app *client.App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// App достает приложение из контекста команды
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(appKey{}).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("приложение не инициализировано")
	}
	return app, nil
}

// ParseFields разбирает пары key=value; значение читается как JSON, если это возможно
func ParseFields(pairs []string, raw string) (entity.Fields, error) {
	fields := entity.Fields{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("неверный JSON в --data: %w", err)
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("ожидается key=value: %q", pair)
		}

		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		fields[key] = v
	}

	return fields, nil
}

func PrintJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// SyncBadge цветная метка статуса синхронизации
func SyncBadge(e *entity.Entity) string {
	switch e.SyncStatus {
	case entity.SyncSynced:
		return OK("synced")
	case entity.SyncError:
		return Fail("error")
	case entity.SyncSyncing:
		return Warn("syncing")
	}
	return Warn(string(e.SyncStatus))
}

// PrintEntity выводит сущность: текст или JSON
func PrintEntity(e *entity.Entity) error {
	if JSONOutput {
		return PrintJSON(e)
	}

	fmt.Printf("%s %s [%s]\n", e.Type, e.ID(), SyncBadge(e))
	if e.TempID != "" && e.Resolved() {
		fmt.Printf("  %s\n", Dim("temp id: "+e.TempID))
	}
	if e.Parent != nil {
		fmt.Printf("  Родитель: %s\n", e.Parent)
	}
	if e.Upload != nil {
		fmt.Printf("  Файл: %s (%s, %d байт) %s %d%%\n",
			e.Upload.FileName, e.Upload.MimeType, e.Upload.Size, e.Upload.Status, e.Upload.Progress)
		if e.Upload.FileURL != "" {
			fmt.Printf("  URL: %s\n", e.Upload.FileURL)
		}
	}
	if e.SyncError != "" {
		fmt.Printf("  Ошибка: %s\n", Fail(e.SyncError))
	}
	if e.Deleted {
		fmt.Printf("  %s\n", Warn("удалено"))
	}
	for k, v := range e.Fields {
		fmt.Printf("  %s: %v\n", k, v)
	}

	return nil
}

// ParentFlags флаги выбора родителя; ровно один должен быть задан
type ParentFlags struct {
	Work        string
	ProgressLog string
	Comment     string
}

func (p *ParentFlags) Register(cmd *cobra.Command, kinds ...entity.ParentKind) {
	for _, k := range kinds {
		switch k {
		case entity.ParentWork:
			cmd.Flags().StringVar(&p.Work, "work", "", "id работы (temp_... или число)")
		case entity.ParentProgressLog:
			cmd.Flags().StringVar(&p.ProgressLog, "progress", "", "id записи о ходе работ")
		case entity.ParentComment:
			cmd.Flags().StringVar(&p.Comment, "comment", "", "id комментария")
		}
	}
}

// Resolve вид родителя и его ссылка
func (p *ParentFlags) Resolve() (entity.ParentKind, string, error) {
	var (
		kind entity.ParentKind
		ref  string
		n    int
	)
	if p.Work != "" {
		kind, ref = entity.ParentWork, p.Work
		n++
	}
	if p.ProgressLog != "" {
		kind, ref = entity.ParentProgressLog, p.ProgressLog
		n++
	}
	if p.Comment != "" {
		kind, ref = entity.ParentComment, p.Comment
		n++
	}
	if n != 1 {
		return "", "", fmt.Errorf("укажите ровно одного родителя")
	}
	return kind, ref, nil
}
