package records

import (
	"fmt"

	"github.com/spf13/cobra"

	"worksync/cmd/client/cmd/cmdutil"
	"worksync/internal/domain/entity"
)

var (
	fieldPairs []string
	rawData    string

	commentParent cmdutil.ParentFlags
	attachParent  cmdutil.ParentFlags
	progressWork  string
)

var WorkCmd = &cobra.Command{
	Use:   "work",
	Short: "Создать работу",
	Example: `  worksync work --field name="Кладка стен" --field floor=2
  worksync work --data '{"name": "Фундамент", "volume_m3": 40}'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		fields, err := cmdutil.ParseFields(fieldPairs, rawData)
		if err != nil {
			return err
		}

		w, err := app.CreateWork(cmd.Context(), fields)
		if err != nil {
			return fmt.Errorf("ошибка создания работы: %w", err)
		}

		return cmdutil.PrintEntity(w)
	},
}

var ProgressCmd = &cobra.Command{
	Use:     "progress",
	Short:   "Добавить запись о ходе работ",
	Example: `  worksync progress --work temp_0c8e... --field percent=40 --field note="армирование"`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}
		if progressWork == "" {
			return fmt.Errorf("укажите --work")
		}

		fields, err := cmdutil.ParseFields(fieldPairs, rawData)
		if err != nil {
			return err
		}

		pl, err := app.AddProgressLog(cmd.Context(), progressWork, fields)
		if err != nil {
			return fmt.Errorf("ошибка создания записи о ходе работ: %w", err)
		}

		return cmdutil.PrintEntity(pl)
	},
}

var CommentCmd = &cobra.Command{
	Use:     "comment",
	Short:   "Добавить комментарий к работе или записи о ходе работ",
	Example: `  worksync comment --progress 812 --field text="бетон принят"`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		kind, ref, err := commentParent.Resolve()
		if err != nil {
			return err
		}

		fields, err := cmdutil.ParseFields(fieldPairs, rawData)
		if err != nil {
			return err
		}

		c, err := app.AddComment(cmd.Context(), kind, ref, fields)
		if err != nil {
			return fmt.Errorf("ошибка создания комментария: %w", err)
		}

		return cmdutil.PrintEntity(c)
	},
}

var AttachCmd = &cobra.Command{
	Use:     "attach <file>",
	Short:   "Прикрепить файл (фото, документ)",
	Example: `  worksync attach --work 42 ./photo.jpg --field caption="северная стена"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cmdutil.App(cmd)
		if err != nil {
			return err
		}

		kind, ref, err := attachParent.Resolve()
		if err != nil {
			return err
		}

		fields, err := cmdutil.ParseFields(fieldPairs, rawData)
		if err != nil {
			return err
		}

		a, err := app.AddAttachment(cmd.Context(), kind, ref, args[0], fields)
		if err != nil {
			return fmt.Errorf("ошибка добавления вложения: %w", err)
		}

		return cmdutil.PrintEntity(a)
	},
}

func addFieldFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&fieldPairs, "field", "F", nil, "поле key=value (значение разбирается как JSON, если возможно)")
	cmd.Flags().StringVar(&rawData, "data", "", "поля в виде JSON-объекта")
}

func init() {
	for _, c := range []*cobra.Command{WorkCmd, ProgressCmd, CommentCmd, AttachCmd, UpdateCmd} {
		addFieldFlags(c)
	}

	ProgressCmd.Flags().StringVar(&progressWork, "work", "", "id работы (temp_... или число)")
	commentParent.Register(CommentCmd, entity.TypeComment.ParentKinds()...)
	attachParent.Register(AttachCmd, entity.TypeAttachment.ParentKinds()...)
}
