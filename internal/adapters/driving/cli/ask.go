package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragmem/internal/core/domain"
)

var askJSON bool

var askCmd = withAccess(&cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the memory",
	Long: `Retrieves the chunks most relevant to the question and generates an
answer from them. The answer is streamed while it is written when stdout
is a terminal.

Prints "INFO NOT FOUND" when nothing in the memory is relevant.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}, AccessRead)

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

// answerJSON is the --json shape of an answer.
type answerJSON struct {
	Question  string          `json:"question"`
	Answer    string          `json:"answer"`
	Found     bool            `json:"found"`
	Sources   []domain.Source `json:"sources"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireMemory(); err != nil {
		return err
	}
	question := strings.Join(args, " ")

	if askJSON {
		answer, err := memoryService.Ask(cmd.Context(), question)
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}
		sources := answer.Sources
		if sources == nil {
			sources = []domain.Source{}
		}
		data, err := json.MarshalIndent(answerJSON{
			Question:  answer.Question,
			Answer:    answer.Text,
			Found:     answer.HasAnswer(),
			Sources:   sources,
			ElapsedMS: answer.Elapsed.Milliseconds(),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	return answerQuestion(cmd, question, stdoutIsTerminal())
}

// answerQuestion asks one question and prints the answer, its sources and
// the time taken. With live set, fragments are printed as they arrive.
func answerQuestion(cmd *cobra.Command, question string, live bool) error {
	stream, err := memoryService.AskStream(cmd.Context(), question)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	defer stream.Close()

	out := cmd.OutOrStdout()
	wrote := false
	for text, err := range stream.Fragments() {
		if err != nil {
			if wrote {
				fmt.Fprintln(out)
			}
			return fmt.Errorf("ask failed: %w", err)
		}
		if live {
			fmt.Fprint(out, text)
			wrote = true
		}
	}
	if wrote {
		fmt.Fprintln(out)
	}
	if err := cmd.Context().Err(); err != nil {
		return err
	}

	answer := stream.Answer()
	cmd.Printf("Answer: %s\n", answer.Text)
	for _, s := range answer.Sources {
		cmd.Printf("Source: %s\n", s.SourceName())
	}
	cmd.Printf("Answer generated in %s\n", answer.Elapsed.Round(time.Millisecond))
	cmd.Println()
	return nil
}
