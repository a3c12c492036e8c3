package cli

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = withAccess(&cobra.Command{
	Use:   "chat [question]",
	Short: "Ask questions until an empty line",
	Long: `Starts an interactive question loop. Each answer is streamed, followed
by its sources and the time it took. A failed question is reported and the
session continues. An empty question ends it.`,
	RunE: runChat,
}, AccessRead)

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := requireMemory(); err != nil {
		return err
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	question := strings.TrimSpace(strings.Join(args, " "))
	for {
		if question == "" {
			cmd.Print("Question: ")
			question = readLine(reader)
			if question == "" {
				return nil
			}
		} else {
			cmd.Printf("Question: %s\n", question)
		}

		if err := answerQuestion(cmd, question, true); err != nil {
			if ctxErr := cmd.Context().Err(); ctxErr != nil {
				return ctxErr
			}
			cmd.PrintErrf("Error: %v\n\n", err)
		}
		question = ""
	}
}

//nolint:errcheck // CLI helper, EOF ends the loop
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
