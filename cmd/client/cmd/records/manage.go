package records

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"worksync/cmd/client/cmd/cmdutil"
	"worksync/internal/domain/entity"
)

var (
	listType    string
	listStatus  string
	showDeleted bool
	limit       int
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список локальных записей",
	Long: `Просмотр локальных записей с фильтрацией по типу и статусу синхронизации.

Записи видны сразу после создания, до отправки на сервер.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		filter := entity.Filter{
			SyncStatus:  entity.SyncStatus(listStatus),
			ShowDeleted: showDeleted,
			Limit:       limit,
		}
		if listType != "" {
			if filter.Type, err = entity.ParseType(listType); err != nil {
				return err
			}
		}

		entities, err := app.List(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("ошибка получения списка: %w", err)
		}

		if cmdutil.JSONOutput {
			return cmdutil.PrintJSON(entities)
		}
		return printTable(entities)
	},
}

var GetCmd = &cobra.Command{
	Use:   "get <type> <id>",
	Short: "Показать запись по temp id или постоянному id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		t, err := entity.ParseType(args[0])
		if err != nil {
			return err
		}

		e, err := app.Get(cmd.Context(), t, args[1])
		if err != nil {
			return err
		}

		return cmdutil.PrintEntity(e)
	},
}

var UpdateCmd = &cobra.Command{
	Use:     "update <type> <id>",
	Short:   "Изменить поля записи",
	Example: `  worksync update work temp_0c8e... --field status=done`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		t, err := entity.ParseType(args[0])
		if err != nil {
			return err
		}

		fields, err := cmdutil.ParseFields(fieldPairs, rawData)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return fmt.Errorf("нет полей для изменения")
		}

		e, err := app.Update(cmd.Context(), t, args[1], fields)
		if err != nil {
			return fmt.Errorf("ошибка изменения: %w", err)
		}

		return cmdutil.PrintEntity(e)
	},
}

var DeleteCmd = &cobra.Command{
	Use:   "delete <type> <id>",
	Short: "Удалить запись",
	Long:  `Запись помечается удаленной локально, удаление на сервере ставится в очередь.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		t, err := entity.ParseType(args[0])
		if err != nil {
			return err
		}

		e, err := app.Delete(cmd.Context(), t, args[1])
		if err != nil {
			return fmt.Errorf("ошибка удаления: %w", err)
		}

		if cmdutil.JSONOutput {
			return cmdutil.PrintJSON(e)
		}
		fmt.Printf("%s %s %s помечен удаленным\n", cmdutil.OK("✓"), e.Type, e.ID())
		return nil
	},
}

func printTable(entities []*entity.Entity) error {
	if len(entities) == 0 {
		fmt.Println("Записи не найдены")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tТип\tРодитель\tСтатус\tОбновлено\t\n")
	fmt.Fprintf(w, "---\t---\t---\t---\t---\t\n")

	for _, e := range entities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			truncate(e.ID(), 20),
			e.Type,
			truncate(e.Parent.String(), 24),
			e.SyncStatus,
			e.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}

	w.Flush()
	fmt.Printf("\nВсего записей: %d\n", len(entities))
	return nil
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func init() {
	ListCmd.Flags().StringVarP(&listType, "type", "t", "", "фильтр по типу (work, progress_log, comment, attachment)")
	ListCmd.Flags().StringVarP(&listStatus, "status", "s", "", "фильтр по статусу синхронизации")
	ListCmd.Flags().BoolVar(&showDeleted, "deleted", false, "показывать удаленные записи")
	ListCmd.Flags().IntVar(&limit, "limit", 50, "ограничение количества записей")
}
