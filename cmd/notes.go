package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/illarion/notelock/internal/items"
)

func newNotesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "List and edit notes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List notes, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore()
			notes, err := store.Items(items.ContentTypeNote)
			if err != nil {
				return err
			}
			tags, err := store.Items(items.ContentTypeTag)
			if err != nil {
				return err
			}
			printNotes(cmd.OutOrStdout(), notes, tags)
			return nil
		},
	})

	var title, tagUUID string
	newCmd := &cobra.Command{
		Use:   "new [TEXT]",
		Short: "Create a note",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore()
			ctx := cmd.Context()

			note, err := store.CreateTemplateItem(items.ContentTypeNote, items.Content{Title: title})
			if err != nil {
				return err
			}
			if len(args) == 1 {
				note.Content.Text = args[0]
			}
			if tagUUID != "" {
				_, err := store.ChangeItem(ctx, tagUUID, func(m *items.Mutator) {
					m.AddItemAsRelationship(note)
				})
				if err != nil {
					return err
				}
			}
			saved, err := store.InsertItem(ctx, note)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), saved.UUID)
			return nil
		},
	}
	newCmd.Flags().StringVar(&title, "title", "", "note title")
	newCmd.Flags().StringVar(&tagUUID, "tag", "", "tag the note with this tag ID")
	cmd.AddCommand(newCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "edit ID TEXT",
		Short: "Replace a note's text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore()
			before, err := store.FindItem(args[0])
			if err != nil {
				return err
			}
			after, err := store.ChangeItem(cmd.Context(), args[0], func(m *items.Mutator) {
				m.SetText(args[1])
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), items.DescribeChange(before, after))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remote ID TEXT",
		Short: "Apply a text change as if it came from another device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore()
			note, err := store.FindItem(args[0])
			if err != nil {
				return err
			}
			synced := note.Clone()
			synced.Content.Text = args[1]
			synced.UpdatedAt = time.Now().UTC()
			if err := store.ApplyRemote(cmd.Context(), synced); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), items.DescribeChange(note, synced))
			return nil
		},
	})

	return cmd
}

func newTagsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Create and list tags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new TITLE",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore()
			tag, err := store.CreateTemplateItem(items.ContentTypeTag, items.Content{Title: args[0]})
			if err != nil {
				return err
			}
			saved, err := store.InsertItem(cmd.Context(), tag)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), saved.UUID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore()
			tags, err := store.Items(items.ContentTypeTag)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tags) == 0 {
				fmt.Fprintln(out, "No tags")
				return nil
			}
			for _, tag := range tags {
				fmt.Fprintf(out, "%s  %s (%d notes)\n", tag.UUID, tag.Content.Title, len(tag.Content.References))
			}
			return nil
		},
	})

	return cmd
}

// printNotes writes one line per note with the titles of the tags that
// reference it.
func printNotes(w io.Writer, notes, tags []*items.Item) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes")
		return
	}
	for _, note := range notes {
		var tagged []string
		for _, tag := range tags {
			if tag.HasRelationshipWith(note) {
				tagged = append(tagged, tag.Content.Title)
			}
		}

		line := fmt.Sprintf("%s  %s", note.UUID, displayTitle(note))
		if len(tagged) > 0 {
			line += " [" + strings.Join(tagged, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
}

func displayTitle(note *items.Item) string {
	if note.Content.Title != "" {
		return note.Content.Title
	}
	text, _, _ := strings.Cut(note.Content.Text, "\n")
	if text == "" {
		return "(untitled)"
	}
	return text
}
