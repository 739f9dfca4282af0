package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/tutorkit/tutorkit/internal/ui"
)

var reviewCmd = &cobra.Command{
	Use:     "review",
	GroupID: "study",
	Short:   "Review due flashcards",
	Long: `Walk through due flashcards one at a time.

Each card shows its content, then asks for a recall quality from 1
(blackout) to 5 (perfect). The next review date follows from that score;
poor recall brings the card back sooner and raises its difficulty.

--until widens the horizon with a natural date ("tomorrow", "next friday")
to preview cards coming due soon.`,
	Run: func(cmd *cobra.Command, args []string) {
		untilStr, _ := cmd.Flags().GetString("until")

		horizon := time.Now()
		if untilStr != "" {
			w := when.New(nil)
			w.Add(en.All...)
			w.Add(common.All...)
			r, err := w.Parse(untilStr, time.Now())
			if err != nil || r == nil {
				fmt.Fprintf(os.Stderr, "Error: could not parse --until %q\n", untilStr)
				os.Exit(1)
			}
			horizon = r.Time
		}

		logger := newLogger("[review] ", false)
		co, closer, err := buildCoordinator(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closer()

		st, err := openStore(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cards, err := st.DueCards(horizon)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(cards) == 0 {
			fmt.Printf("%s Nothing due. Come back later.\n", ui.RenderPass("✓"))
			return
		}

		ctx := context.Background()
		reviewed := 0
		for i, card := range cards {
			fmt.Printf("\n%s %s\n\n", ui.RenderHeader(fmt.Sprintf("[%d/%d]", i+1, len(cards))), ui.RenderAccent(card.Title))
			fmt.Println(card.Content)
			if card.UserNote != "" {
				fmt.Printf("\n%s %s\n", ui.RenderMuted("note:"), card.UserNote)
			}

			quality, done, err := askQuality()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if done {
				break
			}

			updated, err := co.ReviewCard(ctx, card.ID, quality)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error recording review: %v\n", err)
				os.Exit(1)
			}
			reviewed++

			next := updated.NextReviewAt.Local().Format("2006-01-02 15:04")
			if quality < 3 {
				fmt.Printf("%s Again %s\n", ui.RenderWarn("↻"), ui.RenderMuted(next))
			} else {
				fmt.Printf("%s Next %s\n", ui.RenderPass("✓"), ui.RenderMuted(next))
			}
		}

		fmt.Printf("\n%s Reviewed %d of %d cards\n", ui.RenderPass("✓"), reviewed, len(cards))
	},
}

// askQuality prompts for a recall score. Returns done=true when the user
// chooses to stop early.
func askQuality() (int, bool, error) {
	var quality int
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title("How well did you recall this?").
			Options(
				huh.NewOption("5 · Perfect", 5),
				huh.NewOption("4 · Good, minor hesitation", 4),
				huh.NewOption("3 · Correct with effort", 3),
				huh.NewOption("2 · Wrong, but familiar", 2),
				huh.NewOption("1 · Blackout", 1),
				huh.NewOption("Stop reviewing", 0),
			).
			Value(&quality),
	))
	if err := form.Run(); err != nil {
		return 0, false, err
	}
	if quality == 0 {
		return 0, true, nil
	}
	return quality, false, nil
}

func init() {
	reviewCmd.Flags().String("until", "", "Include cards due by this natural date")
	rootCmd.AddCommand(reviewCmd)
}
