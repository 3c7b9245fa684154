package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/barekit/lectern/pkg/app"
)

var askSources bool

var askCmd = &cobra.Command{
	Use:   "ask [pdf] [question]",
	Short: "Answer a question about a PDF",
	Long: `Indexes the PDF on first use and answers the question from its most
relevant passages. The file name identifies the document across runs.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askSources, "sources", false, "print the retrieved passages")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	path, question := args[0], args[1]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		answer, err := a.Ask(ctx, filepath.Base(path), data, question)
		if err != nil {
			return err
		}
		cmd.Println(answer.Text)
		if askSources {
			for _, m := range answer.Sources {
				cmd.Printf("\n[chunk %d, score %.3f]\n%s\n", m.ChunkIndex, m.Score, m.Text)
			}
		}
		return nil
	})
}
