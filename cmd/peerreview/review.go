package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/peerreview/peerreview/internal/config"
	"github.com/peerreview/peerreview/internal/feedback"
	"github.com/peerreview/peerreview/internal/review"
)

var (
	reviewQuestion   string
	reviewAnswer     string
	reviewConfigPath string
	reviewRaw        bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Request a one-shot peer review",
	Long: `Request peer-review feedback from Google Gemini without an MCP client.

When --question or --answer is omitted, an interactive form prompts for
the missing values.

Examples:
  peerreview review -q "What is quantum computing?" -a "It uses qubits."
  peerreview review            # interactive form
  peerreview review --raw ...  # print the unparsed reviewer text`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewQuestion, "question", "q", "", "The original question")
	reviewCmd.Flags().StringVarP(&reviewAnswer, "answer", "a", "", "The answer to review")
	reviewCmd.Flags().StringVarP(&reviewConfigPath, "config", "c", "", "Path to config file (default: config.yaml if present)")
	reviewCmd.Flags().BoolVar(&reviewRaw, "raw", false, "Print the raw reviewer text instead of sections")

	rootCmd.AddCommand(reviewCmd)
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#EA580C", Dark: "#FB923C"})
	sectionStyle = lipgloss.NewStyle().PaddingLeft(2)
	emptyStyle   = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
)

func runReview(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath(reviewConfigPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if reviewQuestion == "" || reviewAnswer == "" {
		if err := promptForReview(); err != nil {
			return err
		}
	}

	req := review.Request{UserQuestion: reviewQuestion, MyAnswer: reviewAnswer}
	if err := req.Validate(); err != nil {
		return err
	}

	client := review.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL)
	raw, err := client.Review(cmd.Context(), req)
	if err != nil {
		return err
	}

	if reviewRaw {
		fmt.Fprintln(cmd.OutOrStdout(), raw)
		return nil
	}

	parsed := feedback.Parse(raw)
	for i, section := range parsed.Sections() {
		title := strings.TrimSuffix(feedback.Headers[i], ":")
		fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render(title))
		if section == "" {
			fmt.Fprintln(cmd.OutOrStdout(), emptyStyle.Render("(not provided)"))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), sectionStyle.Render(section))
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

// promptForReview collects the missing question/answer via a form.
func promptForReview() error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Question").
				Description("The original question asked by the user").
				Value(&reviewQuestion).
				Validate(huh.ValidateNotEmpty()),

			huh.NewText().
				Title("Answer").
				Description("Your initial response that needs peer review").
				Value(&reviewAnswer).
				Validate(huh.ValidateNotEmpty()),
		),
	).WithShowHelp(true)
	return form.Run()
}
