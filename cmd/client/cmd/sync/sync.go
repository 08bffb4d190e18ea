package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"worksync/cmd/client/cmd/cmdutil"
	"worksync/internal/app/client"
	"worksync/internal/domain/queue"
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Управление синхронизацией",
	Long: `Отправка очереди изменений на сервер.

Изменения отправляются по одному в порядке создания. Неудачные попытки
повторяются с растущей задержкой; после исчерпания попыток элемент
остается в очереди со статусом failed до решения пользователя.`,
}

var NowCmd = &cobra.Command{
	Use:   "now",
	Short: "Выполнить один цикл синхронизации",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		start := time.Now()
		result, err := app.SyncNow(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка синхронизации: %w", err)
		}

		if cmdutil.JSONOutput {
			return cmdutil.PrintJSON(result)
		}

		if result.Offline {
			fmt.Println(cmdutil.Warn("Сервер недоступен, изменения остаются в очереди"))
			return nil
		}

		fmt.Println(cmdutil.OK("✓ Цикл синхронизации завершен"))
		fmt.Printf("Время выполнения: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("Обработано: %d\n", result.Processed)
		fmt.Printf("Отправлено: %d\n", result.Completed)
		if result.Rescheduled > 0 {
			fmt.Printf("Отложено: %s\n", cmdutil.Warn(result.Rescheduled))
		}
		if result.Failed > 0 {
			fmt.Printf("Окончательно не отправлено: %s\n", cmdutil.Fail(result.Failed))
		}

		ids := make([]int64, 0, len(result.Errors))
		for id := range result.Errors {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for i, id := range ids {
			if i == 3 {
				fmt.Printf("  ... и еще %d ошибок\n", len(ids)-3)
				break
			}
			fmt.Printf("  • #%d: %v\n", id, result.Errors[id])
		}

		return nil
	},
}

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Показать состояние очереди",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		status, err := app.QueueStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка чтения очереди: %w", err)
		}

		if cmdutil.JSONOutput {
			return cmdutil.PrintJSON(status)
		}

		return printStatus(status)
	},
}

var ClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Удалить окончательно упавший элемент очереди",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("неверный id элемента: %q", args[0])
		}

		if err := app.ClearFailed(cmd.Context(), id); err != nil {
			if errors.Is(err, queue.ErrNotFailed) {
				return fmt.Errorf("элемент #%d еще будет повторен, удалить можно только failed", id)
			}
			return err
		}

		fmt.Printf("%s элемент #%d удален из очереди\n", cmdutil.OK("✓"), id)
		return nil
	},
}

var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Фоновая синхронизация до остановки",
	Long: `Запускает периодическую синхронизацию. Движок запускается при появлении
подключения и останавливается при его потере. Лог пишется в файл.

SIGTSTP (Ctrl+Z) приостанавливает таймер синхронизации, SIGCONT возобновляет.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		defer stop()

		pause := make(chan os.Signal, 1)
		signal.Notify(pause, syscall.SIGTSTP, syscall.SIGCONT)
		defer signal.Stop(pause)
		go pauseOnSignal(ctx, app, pause)

		fmt.Println("Синхронизация запущена, Ctrl+C для остановки, Ctrl+Z для паузы")
		if err := app.Run(ctx); err != nil {
			return err
		}
		fmt.Println(cmdutil.OK("✓ Синхронизация остановлена"))
		return nil
	},
}

type pauser interface {
	Pause()
	Resume()
}

// pauseOnSignal переключает таймер синхронизации по SIGTSTP и SIGCONT до отмены ctx
func pauseOnSignal(ctx context.Context, p pauser, sigs <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGTSTP:
				p.Pause()
				fmt.Println(cmdutil.Warn("Синхронизация приостановлена, SIGCONT для продолжения"))
			case syscall.SIGCONT:
				p.Resume()
				fmt.Println(cmdutil.OK("Синхронизация возобновлена"))
			}
		}
	}
}

func printStatus(status *client.QueueStatus) error {
	fmt.Println("=== Статус синхронизации ===")

	conn := cmdutil.Fail("нет")
	if status.Online {
		conn = cmdutil.OK("есть")
	}
	fmt.Printf("Подключение: %s\n", conn)

	switch {
	case status.Syncing:
		fmt.Println("Движок: выполняется цикл")
	case status.Paused:
		fmt.Println("Движок:", cmdutil.Warn("на паузе"))
	}

	fmt.Printf("В очереди: %d, в обработке: %d, отправлено: %d, failed: %s\n",
		status.Counts[queue.StatusPending],
		status.Counts[queue.StatusProcessing],
		status.Counts[queue.StatusCompleted],
		cmdutil.Fail(status.Counts[queue.StatusFailed]),
	)

	if len(status.Items) == 0 {
		fmt.Println(cmdutil.OK("Очередь пуста"))
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\tОперация\tТип\tID\tПопытки\tСтатус\tСледующая\tОшибка\t\n")
	for _, item := range status.Items {
		next := "-"
		if item.NextRetry != nil {
			next = item.NextRetry.Local().Format("15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\t\n",
			item.ID,
			item.Operation,
			item.EntityType,
			item.EntityID,
			item.Attempts,
			item.MaxAttempts,
			item.Status,
			next,
			item.Error,
		)
	}
	w.Flush()

	if status.Counts[queue.StatusFailed] > 0 {
		fmt.Printf("\n%s failed элементы не повторяются автоматически: worksync sync clear <id>\n", cmdutil.Warn("⚠"))
	}

	return nil
}
