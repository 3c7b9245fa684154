package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/barekit/lectern/pkg/app"
	"github.com/barekit/lectern/pkg/library"
)

var (
	mcqCount     int
	libraryKind  string
	libraryLimit int
)

var notesCmd = &cobra.Command{
	Use:   "notes [topic]",
	Short: "Write study notes on a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			content, err := a.TopicNotes(ctx, args[0])
			if err != nil {
				return err
			}
			cmd.Println(content)
			return nil
		})
	},
}

var mcqCmd = &cobra.Command{
	Use:   "mcq [topic]",
	Short: "Generate a multiple-choice questionnaire",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			questions, err := a.Questionnaire(ctx, args[0], mcqCount)
			if err != nil {
				return err
			}
			return printJSON(cmd, questions)
		})
	},
}

var videoCmd = &cobra.Command{
	Use:   "video [youtube-link] [subject]",
	Short: "Write notes from a YouTube video's transcript",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out, err := a.ConvertVideo(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			cmd.Println(out.Notes)
			return nil
		})
	},
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "List saved answers, notes and questionnaires",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, err := library.ParseKind(libraryKind)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			artifacts, err := a.History(ctx, library.Query{Kind: kind, Limit: libraryLimit})
			if err != nil {
				return err
			}
			if len(artifacts) == 0 {
				cmd.Println("No artifacts found.")
				return nil
			}
			for _, art := range artifacts {
				cmd.Printf("%s  %-13s  %s\n", art.CreatedAt.Format("2006-01-02 15:04"), art.Kind, art.Subject)
			}
			return nil
		})
	},
}

func init() {
	mcqCmd.Flags().IntVarP(&mcqCount, "num", "n", 0, "number of questions (default from config)")
	libraryCmd.Flags().StringVar(&libraryKind, "kind", "", "answer, topic_notes, video_notes or questionnaire")
	libraryCmd.Flags().IntVarP(&libraryLimit, "limit", "n", library.DefaultLimit, "maximum number of artifacts")
	rootCmd.AddCommand(notesCmd, mcqCmd, videoCmd, libraryCmd)
}
