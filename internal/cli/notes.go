package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/models"
)

const timeLayout = "2006-01-02 15:04"

// ListNotes prints all notes, or only favorites with "fav".
func (a *App) ListNotes(ctx context.Context, args []string) error {
	var (
		list []models.Note
		err  error
	)
	switch {
	case len(args) == 0:
		list, err = a.notes.FindAll(ctx)
	case len(args) == 1 && args[0] == "fav":
		list, err = a.notes.FindFavorites(ctx)
	default:
		return usage("notes [fav]")
	}
	if err != nil {
		return err
	}
	printNoteList(a.out, list)
	return nil
}

func printNoteList(w io.Writer, list []models.Note) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No notes.")
		return
	}
	for _, n := range list {
		fmt.Fprintln(w, noteLine(n))
	}
}

func noteLine(n models.Note) string {
	star := " "
	if n.IsFavorite {
		star = "*"
	}
	return fmt.Sprintf("%s %s %-30s  %s", shortID(n.ID), star, n.Title, n.UpdatedAt.Local().Format(timeLayout))
}

// shortID is the prefix shown in listings; commands accept any unique prefix.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// AddNote prompts for a title, a multiline body and tags.
func (a *App) AddNote(ctx context.Context) error {
	title, err := GetSimpleText(a.reader, "- Enter title", a.out)
	if err != nil {
		return err
	}
	if title == "" {
		return fmt.Errorf("%w: title is required", common.ErrorValidation)
	}
	content, err := GetMultiline(a.reader, "- Enter note text", a.out)
	if err != nil {
		return err
	}
	tags, err := GetList(a.reader, "- Tags, comma separated (optional)", a.out)
	if err != nil {
		return err
	}

	n := &models.Note{Title: title, Content: content, Tags: tags}
	if err := a.notes.Create(ctx, n); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved note %s.\n", shortID(n.ID))
	return nil
}

// ShowNote prints one note in full.
func (a *App) ShowNote(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("shownote <id>")
	}
	n, err := a.resolveNote(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ID:       %s\n", n.ID)
	fmt.Fprintf(a.out, "Title:    %s\n", n.Title)
	if len(n.Tags) > 0 {
		fmt.Fprintf(a.out, "Tags:     %s\n", strings.Join(n.Tags, ", "))
	}
	fmt.Fprintf(a.out, "Favorite: %t\n", n.IsFavorite)
	fmt.Fprintf(a.out, "Created:  %s\n", n.CreatedAt.Local().Format(timeLayout))
	fmt.Fprintf(a.out, "Updated:  %s\n", n.UpdatedAt.Local().Format(timeLayout))
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, n.Content)
	return nil
}

// EditNote re-prompts every field; an empty answer keeps the old value.
func (a *App) EditNote(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("editnote <id>")
	}
	n, err := a.resolveNote(ctx, args[0])
	if err != nil {
		return err
	}

	title, err := GetSimpleText(a.reader, fmt.Sprintf("- Title [%s]", n.Title), a.out)
	if err != nil {
		return err
	}
	if title != "" {
		n.Title = title
	}
	content, err := GetMultiline(a.reader, "- New text (empty keeps the current text)", a.out)
	if err != nil {
		return err
	}
	if content != "" {
		n.Content = content
	}
	tags, err := GetList(a.reader, fmt.Sprintf("- Tags [%s] (\"-\" clears)", strings.Join(n.Tags, ", ")), a.out)
	if err != nil {
		return err
	}
	switch {
	case len(tags) == 1 && tags[0] == "-":
		n.Tags = nil
	case len(tags) > 0:
		n.Tags = tags
	}

	if err := a.notes.Update(ctx, n); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Updated.")
	return nil
}

// DeleteNote removes a note after confirmation.
func (a *App) DeleteNote(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("delnote <id>")
	}
	n, err := a.resolveNote(ctx, args[0])
	if err != nil {
		return err
	}
	if !Confirm(a.reader, fmt.Sprintf("Delete %q?", n.Title), a.out) {
		return errCancelled
	}
	if err := a.notes.Delete(ctx, n.ID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

// Favorite sets or clears the favorite flag.
func (a *App) Favorite(ctx context.Context, args []string) error {
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return usage("fav <id> on|off")
	}
	n, err := a.resolveNote(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.notes.SetFavorite(ctx, n.ID, args[1] == "on"); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Updated.")
	return nil
}

// Search lists notes whose title, content or tags contain the query.
func (a *App) Search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("search <text>")
	}
	list, err := a.notes.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printNoteList(a.out, list)
	return nil
}

// resolveNote finds a note by full ID or by a unique ID prefix.
func (a *App) resolveNote(ctx context.Context, ref string) (*models.Note, error) {
	all, err := a.notes.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var found *models.Note
	for i := range all {
		if all[i].ID == ref {
			return &all[i], nil
		}
		if strings.HasPrefix(all[i].ID, ref) {
			if found != nil {
				return nil, fmt.Errorf("%w: id prefix %q is ambiguous", common.ErrorValidation, ref)
			}
			found = &all[i]
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	return found, nil
}
