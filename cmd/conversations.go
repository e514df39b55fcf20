package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/KodaTao/ai-chat/model"
	"github.com/KodaTao/ai-chat/service"
)

var (
	conversationsOutput string
	conversationsLimit  int
)

// conversationsCmd 会话命令组
var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "管理会话",
}

// conversationsListCmd 列出会话
var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出最近的会话",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if conversationsOutput != "table" && conversationsOutput != "json" {
			return fmt.Errorf("unknown output %q, want table or json", conversationsOutput)
		}

		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()
		db, err := model.InitDB(cfg.Database, "error")
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, model.Close(db)) }()

		list, err := service.NewConversationService(db).List(context.Background(), 0, conversationsLimit)
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		return printConversations(cmd.OutOrStdout(), conversationsOutput, list)
	},
}

func printConversations(w io.Writer, output string, list []model.Conversation) error {
	if output == "json" {
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	rows := make([][]string, 0, len(list))
	for _, c := range list {
		rows = append(rows, []string{
			fmt.Sprint(c.ID),
			c.Title,
			c.CreatedAt.Local().Format("2006-01-02 15:04"),
			c.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("ID", "Title", "Created", "Updated").
		Rows(rows...)

	_, err := fmt.Fprintf(w, "%s\n\ncount %d\n", t, len(list))
	return err
}

func init() {
	conversationsListCmd.Flags().StringVarP(&conversationsOutput, "output", "o", "table", "输出格式 (table/json)")
	conversationsListCmd.Flags().IntVarP(&conversationsLimit, "limit", "l", 20, "最多显示条数")

	conversationsCmd.AddCommand(conversationsListCmd)
}
