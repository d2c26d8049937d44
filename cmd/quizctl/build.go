package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/iknowaviation/quizport/internal/export"
	"github.com/iknowaviation/quizport/internal/quiz"
)

func newBuildCmd(open opener) *cobra.Command {
	var req export.BuildRequest
	var questionsFile, outPath string
	var settings map[string]string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate a starter import document from a base quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if req.BaseQuizID <= 0 {
				req.BaseQuizID = a.Config.BaseQuizID
			}
			if questionsFile != "" {
				raw, err := os.ReadFile(questionsFile)
				if err != nil {
					return withCode(exitUsage, err)
				}
				req.QuestionsJSON = string(raw)
			}
			if len(settings) > 0 {
				req.Settings = quiz.Settings{}
				for k, v := range settings {
					req.Settings[k] = v
				}
			}
			doc, err := a.Exporter.Build(cmd.Context(), req)
			if err != nil {
				return withCode(exitFailure, err)
			}
			return writeDoc(cmd, outPath, export.BuilderFilename(doc.Quiz.Name), doc)
		},
	}
	f := cmd.Flags()
	f.Int64Var(&req.BaseQuizID, "base-quiz-id", 0, "Quiz whose settings seed the document (default BASE_QUIZ_ID)")
	f.StringVar(&req.Name, "name", "", "Quiz name (required)")
	f.StringVar(&req.DescriptionHTML, "description", "", "Description HTML")
	f.StringVar(&req.FinalScreenHTML, "final-screen", "", "Final screen HTML")
	f.StringToStringVar(&settings, "set", nil, "Settings as key=value; unlisted checkbox settings become 0")
	f.StringVar(&req.Topics, "topics", "", "Comma separated topics")
	f.StringVar(&req.Difficulty, "difficulty", "", "Difficulty")
	f.StringVar(&req.Audience, "audience", "", "Comma separated audience")
	f.StringVar(&questionsFile, "questions", "", "File holding a JSON questions array")
	f.StringVarP(&outPath, "out", "o", "", `Output file, "-" for stdout, a directory for the default name`)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
