package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tutorkit/tutorkit/internal/model"
	"github.com/tutorkit/tutorkit/internal/store"
	"github.com/tutorkit/tutorkit/internal/ui"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	GroupID: "study",
	Short:   "Create and manage study sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a study session from a document",
	Long: `Create a study session, optionally loading a source document.

The document text becomes the session's study material. An outline can be
provided as a JSON file of chapters:

  tut session create "Go Basics" --document notes.txt --outline outline.json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		docPath, _ := cmd.Flags().GetString("document")
		outlinePath, _ := cmd.Flags().GetString("outline")
		level, _ := cmd.Flags().GetString("level")

		sess := &model.Session{
			Title:         args[0],
			LearningLevel: level,
			Status:        model.StatusActive,
		}

		if docPath != "" {
			data, err := os.ReadFile(docPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading document: %v\n", err)
				os.Exit(1)
			}
			sess.DocumentContent = string(data)
			sess.DocumentType = strings.TrimPrefix(strings.ToLower(filepath.Ext(docPath)), ".")
		}

		if outlinePath != "" {
			data, err := os.ReadFile(outlinePath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading outline: %v\n", err)
				os.Exit(1)
			}
			if err := json.Unmarshal(data, &sess.Outline); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing outline: %v\n", err)
				os.Exit(1)
			}
		}

		co, closer, err := buildCoordinator(newLogger("[session] ", false))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closer()

		if err := co.SaveSession(context.Background(), sess); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving session: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Created session %s\n", ui.RenderPass("✓"), ui.RenderAccent(sess.ID))
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently updated first",
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore(newLogger("[session] ", false))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		sessions, err := st.ListSessions()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing sessions: %v\n", err)
			os.Exit(1)
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions. Create one with 'tut session create'.")
			return
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader("Sessions"))
		for _, s := range sessions {
			marker := " "
			if s.HasBookmarks() {
				marker = ui.RenderAccent("★")
			}
			fmt.Printf("%s %s  %s  %s\n", marker, ui.RenderAccent(shortID(s.ID)), s.Title,
				ui.RenderMuted(fmt.Sprintf("%s · %d messages · %d cards · %s",
					s.Status, len(s.Messages), len(s.Cards), s.UpdatedAt.Format("2006-01-02 15:04"))))
		}
		fmt.Println()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's transcript and cards",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore(newLogger("[session] ", false))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		sess, err := resolveSession(st, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s %s\n", ui.RenderHeader(sess.Title), ui.RenderMuted("("+sess.ID+")"))
		fmt.Printf("Status: %s  Level: %s\n", sess.Status, sess.LearningLevel)
		if sess.CurrentChapter != "" {
			if ch := sess.FindChapter(sess.CurrentChapter); ch != nil {
				fmt.Printf("Current chapter: %s\n", ui.RenderAccent(ch.Title))
			}
		}
		fmt.Println()

		for _, m := range sess.Messages {
			mark := ""
			if m.Bookmarked {
				mark = " " + ui.RenderAccent("★")
			}
			fmt.Printf("%s%s %s\n", ui.RenderMuted(string(m.Role)+":"), mark, m.Content)
		}

		if len(sess.Cards) > 0 {
			fmt.Printf("\n%s\n", ui.RenderHeader("Cards"))
			for _, c := range sess.Cards {
				fmt.Printf("  %s %s %s\n", ui.RenderAccent(shortID(c.ID)), c.Title,
					ui.RenderMuted(fmt.Sprintf("next review %s", c.NextReviewAt.Format("2006-01-02 15:04"))))
			}
		}
		fmt.Println()
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session locally and remotely",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger("[session] ", false)
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

		if err := co.DeleteSession(context.Background(), sess.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting session: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Deleted session %s\n", ui.RenderPass("✓"), ui.RenderAccent(sess.ID))
	},
}

var sessionExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session as json, yaml, or toml",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")

		st, err := openStore(newLogger("[session] ", false))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		sess, err := resolveSession(st, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			err = enc.Encode(sess)
		case "yaml":
			err = yaml.NewEncoder(os.Stdout).Encode(sess)
		case "toml":
			err = toml.NewEncoder(os.Stdout).Encode(sess)
		default:
			err = fmt.Errorf("unknown format %q (want json, yaml, or toml)", format)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting session: %v\n", err)
			os.Exit(1)
		}
	},
}

// shortID abbreviates record ids for list output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveSession looks a session up by full id or unique prefix.
func resolveSession(st *store.Store, ref string) (*model.Session, error) {
	if sess, err := st.GetSession(ref); err == nil {
		return sess, nil
	}

	sessions, err := st.ListSessions()
	if err != nil {
		return nil, err
	}
	var match *model.Session
	for i := range sessions {
		if strings.HasPrefix(sessions[i].ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("session prefix %q is ambiguous", ref)
			}
			match = &sessions[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("session %q not found", ref)
	}
	return match, nil
}

func init() {
	sessionCreateCmd.Flags().String("document", "", "Path to the source document")
	sessionCreateCmd.Flags().String("outline", "", "Path to a JSON outline file")
	sessionCreateCmd.Flags().String("level", "intermediate", "Learning level (beginner, intermediate, advanced)")
	sessionExportCmd.Flags().StringP("format", "f", "json", "Export format: json, yaml, toml")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	sessionCmd.AddCommand(sessionExportCmd)
	rootCmd.AddCommand(sessionCmd)
}
