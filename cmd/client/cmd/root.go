package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"worksync/cmd/client/cmd/cmdutil"
	"worksync/internal/app/client"
	"worksync/internal/app/client/config"
	"worksync/internal/utils/logger"
)

// annotationFileLog команды с этой аннотацией пишут лог в файл с ротацией
const annotationFileLog = "file_log"

var (
	cfgFile   string
	cfg       *config.Config
	log       *slog.Logger
	app       *client.App
	debug     bool
	offline   bool
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "worksync",
	Short: "WorkSync - полевой клиент учета строительных работ",
	Long: `WorkSync: клиент для учета работ, хода работ, комментариев и фотографий
на объекте без стабильной связи.

Все изменения сначала сохраняются локально и ставятся в очередь,
а затем отправляются на сервер, когда появляется подключение.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cmdutil.Fail("Ошибка:"), err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	if debug {
		cfg.Env = logger.EnvLocal
	}

	if _, ok := cmd.Annotations[annotationFileLog]; ok {
		log = logger.NewFile(cfg.Env, cfg.LogFile)
	} else {
		log = logger.New(cfg.Env)
	}

	app, err = client.New(cfg, log, client.Options{Offline: offline})
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(cmdutil.WithApp(cmd.Context(), app))
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if app == nil {
		return nil
	}
	return app.Close()
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		viper.AddConfigPath(filepath.Join(home, ".worksync"))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return config.Load()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&cmdutil.JSONOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера WorkSync (host:port)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "не обращаться к серверу")
}
