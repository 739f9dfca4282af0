package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutorkit/tutorkit/internal/model"
	"github.com/tutorkit/tutorkit/internal/ui"
)

var cardCmd = &cobra.Command{
	Use:     "card",
	GroupID: "study",
	Short:   "Create and inspect flashcards",
}

var cardCreateCmd = &cobra.Command{
	Use:   "create <session-id> <title>",
	Short: "Create a flashcard in a session",
	Long: `Create a flashcard, either from a transcript message or freeform.

With --message, the card body is the message text, the message is
bookmarked, and the card type is "bookmark". Without it, --content is
required and the card type is "insight".`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		messageID, _ := cmd.Flags().GetString("message")
		content, _ := cmd.Flags().GetString("content")
		note, _ := cmd.Flags().GetString("note")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		logger := newLogger("[card] ", false)
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
		sess, err := resolveSession(st, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		card := &model.Card{
			SessionID: sess.ID,
			Title:     args[1],
			Content:   content,
			UserNote:  note,
			Tags:      tags,
			Type:      model.CardInsight,
		}

		if messageID != "" {
			var found *model.Message
			for i := range sess.Messages {
				if sess.Messages[i].ID == messageID {
					found = &sess.Messages[i]
					break
				}
			}
			if found == nil {
				fmt.Fprintf(os.Stderr, "Error: message %q not found in session\n", messageID)
				os.Exit(1)
			}
			card.MessageID = found.ID
			card.Type = model.CardBookmark
			if card.Content == "" {
				card.Content = found.Content
			}
		}

		if err := co.SaveCard(context.Background(), card); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving card: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Created card %s\n", ui.RenderPass("✓"), ui.RenderAccent(card.ID))
		fmt.Printf("   First review: %s\n", ui.RenderMuted(card.NextReviewAt.Local().Format("2006-01-02 15:04")))
	},
}

var cardDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List cards due for review",
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore(newLogger("[card] ", false))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cards, err := st.DueCards(time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(cards) == 0 {
			fmt.Printf("%s Nothing due. Come back later.\n", ui.RenderPass("✓"))
			return
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader(fmt.Sprintf("Due for review (%d)", len(cards))))
		for _, c := range cards {
			fmt.Printf("  %s %s %s\n", ui.RenderAccent(shortID(c.ID)), c.Title,
				ui.RenderMuted(fmt.Sprintf("difficulty %.1f · reviewed %d×", c.Difficulty, c.ReviewCount)))
		}
		fmt.Println()
	},
}

func init() {
	cardCreateCmd.Flags().String("message", "", "Message id to promote into this card")
	cardCreateCmd.Flags().String("content", "", "Card body text (required without --message)")
	cardCreateCmd.Flags().String("note", "", "Personal annotation")
	cardCreateCmd.Flags().StringSlice("tags", nil, "Comma-separated tags")

	cardCmd.AddCommand(cardCreateCmd)
	cardCmd.AddCommand(cardDueCmd)
	rootCmd.AddCommand(cardCmd)
}
