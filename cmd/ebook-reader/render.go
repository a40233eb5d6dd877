package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/drallgood/ebook-reader/internal/models"
	"github.com/drallgood/ebook-reader/internal/state/inbox"
	"github.com/drallgood/ebook-reader/internal/util"
)

const titleWidth = 40

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func section(out io.Writer, title string) {
	fmt.Fprintf(out, "\n== %s ==\n", title)
}

func printUser(out io.Writer, u *models.User) {
	if u == nil {
		fmt.Fprintln(out, "Not signed in")
		return
	}
	name := strings.TrimSpace(util.CapitalizeFirstLetter(u.FirstName) + " " + util.CapitalizeFirstLetter(u.LastName))
	if name == "" {
		name = u.Username
	}
	fmt.Fprintf(out, "%s <%s> (id %s)\n", name, u.Email, u.ID)
}

func printBooks(out io.Writer, books []models.Book) {
	if len(books) == 0 {
		fmt.Fprintln(out, "No books")
		return
	}
	w := table(out)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tFORMAT\tSIZE\tRATING")
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1f\n",
			b.ID, util.TruncateText(b.Title, titleWidth), b.Author, b.Format, util.FormatFileSize(b.FileSize), b.Rating)
	}
	w.Flush()
}

func printPagination(out io.Writer, p models.PaginationMeta) {
	fmt.Fprintf(out, "Page %d of %d (%d books)", p.CurrentPage, p.TotalPages, p.TotalItems)
	if p.HasNext {
		fmt.Fprintf(out, ", next: --page %d", p.CurrentPage+1)
	}
	fmt.Fprintln(out)
}

func printCategories(out io.Writer, categories []models.Category) {
	if len(categories) == 0 {
		fmt.Fprintln(out, "No categories")
		return
	}
	w := table(out)
	fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
	for _, c := range categories {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, util.TruncateText(c.Description, titleWidth))
	}
	w.Flush()
}

func printNotifications(out io.Writer, s inbox.Snapshot) {
	fmt.Fprintf(out, "%d unread\n", s.UnreadCount)
	if len(s.Items) == 0 {
		return
	}
	w := table(out)
	for _, n := range s.Items {
		marker := " "
		if !n.IsRead {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, n.ID, n.Type, util.TruncateText(n.Title, titleWidth))
	}
	w.Flush()
}

func printSettings(out io.Writer, s *models.PushSettings) {
	if s == nil {
		return
	}
	w := table(out)
	fmt.Fprintf(w, "enabled\t%t\n", s.Enabled)
	fmt.Fprintf(w, "new books\t%t\n", s.NewBooks)
	fmt.Fprintf(w, "new categories\t%t\n", s.NewCategories)
	fmt.Fprintf(w, "reading reminders\t%t\n", s.ReadingReminders)
	fmt.Fprintf(w, "system\t%t\n", s.SystemNotifications)
	w.Flush()
}

func printProgress(out io.Writer, p *models.ReadingProgress) {
	if p == nil {
		fmt.Fprintln(out, "No progress recorded")
		return
	}
	percent := 0
	if p.TotalPages > 0 {
		percent = p.CurrentPage * 100 / p.TotalPages
	}
	fmt.Fprintf(out, "%s: page %d of %d (%d%%)", p.BookID, p.CurrentPage, p.TotalPages, percent)
	if p.IsCompleted {
		fmt.Fprint(out, ", completed")
	}
	fmt.Fprintln(out)
}
