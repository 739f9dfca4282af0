package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tutorkit/tutorkit/internal/chapter"
	"github.com/tutorkit/tutorkit/internal/llm"
	"github.com/tutorkit/tutorkit/internal/model"
	"github.com/tutorkit/tutorkit/internal/store"
	"github.com/tutorkit/tutorkit/internal/ui"
)

const tutorSystemPrompt = `You are a patient tutor working through a document with a student.
Ground every answer in the document content. Keep answers focused on the
current chapter unless the student asks to move elsewhere. When you start
covering a new section, say so explicitly.`

var chatCmd = &cobra.Command{
	Use:     "chat <session-id> <message>",
	GroupID: "study",
	Short:   "Send a chat message in a session",
	Long: `Send a message to the tutor within a study session.

The user turn and the assistant reply are appended to the session
transcript. If either turn indicates a chapter change, the session's
current chapter is updated (an explicit user request wins over an
assistant announcement).`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger("[chat] ", false)

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

		userText := strings.Join(args[1:], " ")

		provider, err := buildProvider(st)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		reply, err := provider.SendChat(ctx, llm.ChatRequest{
			System:   buildSystemPrompt(sess),
			Messages: buildHistory(sess, userText),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error from %s: %v\n", provider.Name(), err)
			os.Exit(1)
		}

		msgs := []model.Message{
			{Role: model.RoleUser, Content: userText, ChapterID: sess.CurrentChapter},
			{Role: model.RoleAssistant, Content: reply, ChapterID: sess.CurrentChapter},
		}

		// Chapter transitions are discrete state changes, applied before the
		// messages commit so both turns carry the right chapter.
		det := chapter.NewDetector(sess.Outline)
		if t, ok := det.Detect(userText, reply); ok && t.ChapterID != sess.CurrentChapter {
			if err := st.SetCurrentChapter(sess.ID, t.ChapterID); err != nil {
				logger.Printf("Failed to record chapter transition: %v", err)
			} else {
				fmt.Printf("%s Now on: %s\n", ui.RenderMuted("→"), ui.RenderAccent(t.Title))
				msgs[0].ChapterID = t.ChapterID
				msgs[1].ChapterID = t.ChapterID
			}
		}

		if err := co.AppendMessages(ctx, sess.ID, msgs); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving messages: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s\n", reply)
	},
}

// buildProvider resolves the LLM provider once, preferring the API config
// saved in the local store over the config file.
func buildProvider(st *store.Store) (llm.Provider, error) {
	pc, err := st.APIConfig()
	if err != nil {
		return nil, err
	}
	if pc == nil {
		pc = &model.ProviderConfig{
			Provider:    cfg.Provider.Name,
			BaseURL:     cfg.Provider.BaseURL,
			APIKey:      cfg.Provider.APIKey,
			Model:       cfg.Provider.Model,
			MaxTokens:   cfg.Provider.MaxTokens,
			Temperature: cfg.Provider.Temperature,
		}
	}
	return llm.New(pc)
}

func buildSystemPrompt(sess *model.Session) string {
	var sb strings.Builder
	sb.WriteString(tutorSystemPrompt)
	if sess.CurrentChapter != "" {
		if ch := sess.FindChapter(sess.CurrentChapter); ch != nil {
			fmt.Fprintf(&sb, "\n\nCurrent chapter: %s", ch.Title)
		}
	}
	if sess.LearningLevel != "" {
		fmt.Fprintf(&sb, "\nStudent level: %s", sess.LearningLevel)
	}
	if sess.DocumentContent != "" {
		fmt.Fprintf(&sb, "\n\nDocument:\n%s", sess.DocumentContent)
	}
	return sb.String()
}

// buildHistory converts the transcript plus the new user turn into
// provider messages. System-role bookkeeping turns are skipped.
func buildHistory(sess *model.Session, userText string) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, len(sess.Messages)+1)
	for _, m := range sess.Messages {
		if m.Role == model.RoleSystem {
			continue
		}
		msgs = append(msgs, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return append(msgs, llm.ChatMessage{Role: "user", Content: userText})
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
