package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"worksync/cmd/client/cmd/cmdutil"
	"worksync/cmd/client/cmd/records"
	"worksync/cmd/client/cmd/sync"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Проверить настройку клиента",
	Long: `Команда init создает директорию данных и локальную базу,
показывает текущую конфигурацию и проверяет соединение с сервером.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Println("=== Инициализация WorkSync ===")
		fmt.Printf("Директория данных: %s\n", cfg.ConfigDir)
		fmt.Printf("Локальная база: %s\n", cfg.DataPath)
		fmt.Printf("Сервер: %s\n", cfg.BaseURL())

		fmt.Println("Проверка соединения с сервером...")
		if err := app.CheckConnection(cmd.Context()); err != nil {
			fmt.Printf("%s не удалось подключиться к серверу: %v\n", cmdutil.Warn("Предупреждение:"), err)
			fmt.Println("Можно работать офлайн, изменения будут отправлены позже.")
		} else {
			fmt.Println(cmdutil.OK("✓ Соединение с сервером установлено"))
		}

		fmt.Println()
		fmt.Println("Что дальше:")
		fmt.Println("1. Создайте работу: worksync work --field name=\"Фундамент\"")
		fmt.Println("2. Запустите фоновую синхронизацию: worksync sync daemon")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	// Сущности
	rootCmd.AddCommand(records.WorkCmd)
	rootCmd.AddCommand(records.ProgressCmd)
	rootCmd.AddCommand(records.CommentCmd)
	rootCmd.AddCommand(records.AttachCmd)
	rootCmd.AddCommand(records.ListCmd)
	rootCmd.AddCommand(records.GetCmd)
	rootCmd.AddCommand(records.UpdateCmd)
	rootCmd.AddCommand(records.DeleteCmd)

	// Синхронизация
	rootCmd.AddCommand(sync.SyncCmd)
	sync.SyncCmd.AddCommand(sync.NowCmd)
	sync.SyncCmd.AddCommand(sync.StatusCmd)
	sync.SyncCmd.AddCommand(sync.ClearCmd)
	sync.SyncCmd.AddCommand(sync.DaemonCmd)
	sync.DaemonCmd.Annotations = map[string]string{annotationFileLog: "true"}
}
