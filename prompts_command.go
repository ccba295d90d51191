package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitovidale/editia-orchestrator/promptbank"
)

// loadPromptBank reads the bundle at path, falling back to PROMPTS_PATH and
// then the embedded bundle.
func loadPromptBank(path string) (*promptbank.Bank, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("PROMPTS_PATH"))
	}
	if path == "" {
		return promptbank.Default()
	}
	return promptbank.LoadFile(path)
}

func newPromptsCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect the prompt bank",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "Prompt bundle path (defaults to the embedded bundle)")

	cmd.AddCommand(newPromptsListCommand(&file))
	cmd.AddCommand(newPromptsShowCommand(&file))
	cmd.AddCommand(newPromptsFillCommand(&file))
	return cmd
}

func newPromptsListCommand(file *string) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prompt records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := loadPromptBank(*file)
			if err != nil {
				return err
			}
			records := bank.Latest()
			if all {
				records = bank.All()
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				dev := "no"
				if rec.Prompts.Developer != nil {
					dev = "yes"
				}
				rows = append(rows, []string{rec.ID, rec.Version, string(rec.Status), dev, rec.Name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Version", "Status", "Developer", "Name"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include deprecated records")
	return cmd
}

func newPromptsShowCommand(file *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a prompt record's templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := loadPromptBank(*file)
			if err != nil {
				return err
			}
			rec, ok := bank.Get(args[0])
			if !ok {
				return fmt.Errorf("prompt %q not found", args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s)\n", rec.ID, rec.Version, rec.Status)
			printSection(out, "system", rec.Prompts.System)
			printSection(out, "user", rec.Prompts.User)
			if rec.Prompts.Developer != nil {
				printSection(out, "developer", *rec.Prompts.Developer)
			}
			return nil
		},
	}
}

func newPromptsFillCommand(file *string) *cobra.Command {
	var (
		sets       []string
		valuesJSON string
	)
	cmd := &cobra.Command{
		Use:   "fill <id>",
		Short: "Render a prompt with placeholder values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := loadPromptBank(*file)
			if err != nil {
				return err
			}
			values, err := parseFillValues(sets, valuesJSON)
			if err != nil {
				return err
			}
			filled, ok := bank.Fill(args[0], values)
			if !ok {
				return fmt.Errorf("prompt %q not found", args[0])
			}
			out := cmd.OutOrStdout()
			printSection(out, "system", filled.System)
			printSection(out, "user", filled.User)
			if filled.Developer != nil {
				printSection(out, "developer", *filled.Developer)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Placeholder value as key=value (repeatable)")
	cmd.Flags().StringVar(&valuesJSON, "values", "", "JSON object of placeholder values")
	return cmd
}

// parseFillValues merges a JSON object with key=value pairs; pairs win.
func parseFillValues(sets []string, valuesJSON string) (map[string]any, error) {
	values := map[string]any{}
	if strings.TrimSpace(valuesJSON) != "" {
		decoder := json.NewDecoder(strings.NewReader(valuesJSON))
		decoder.UseNumber()
		if err := decoder.Decode(&values); err != nil {
			return nil, fmt.Errorf("parse --values: %w", err)
		}
	}
	for _, pair := range sets {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("--set expects key=value, got %q", pair)
		}
		values[strings.TrimSpace(key)] = value
	}
	return values, nil
}

func printSection(out io.Writer, title, body string) {
	fmt.Fprintf(out, "\n[%s]\n%s\n", title, strings.TrimRight(body, "\n"))
}
