package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/drallgood/ebook-reader/internal/api/catalog"
	"github.com/drallgood/ebook-reader/internal/models"
	"github.com/drallgood/ebook-reader/internal/push"
	"github.com/drallgood/ebook-reader/internal/util"
)

func (a *cliApp) commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "login",
			Usage: "Sign in and store the session",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "email", Required: true},
				&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"EBOOK_PASSWORD"}},
			},
			Action: a.login,
		},
		{
			Name:  "register",
			Usage: "Create an account and sign in",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "email", Required: true},
				&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"EBOOK_PASSWORD"}},
				&cli.StringFlag{Name: "username", Required: true},
				&cli.StringFlag{Name: "first-name"},
				&cli.StringFlag{Name: "last-name"},
			},
			Action: a.register,
		},
		{
			Name:   "logout",
			Usage:  "Sign out and forget stored tokens",
			Action: a.logout,
		},
		{
			Name:   "whoami",
			Usage:  "Show the signed in user",
			Action: a.whoami,
		},
		{
			Name:   "refresh",
			Usage:  "Exchange the refresh token for a new token pair",
			Action: a.refresh,
		},
		{
			Name:  "profile",
			Usage: "Update profile fields",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "username"},
				&cli.StringFlag{Name: "first-name"},
				&cli.StringFlag{Name: "last-name"},
				&cli.StringFlag{Name: "avatar"},
			},
			Action: a.updateProfile,
		},
		{
			Name:  "password",
			Usage: "Change, or reset a forgotten, password",
			Subcommands: []*cli.Command{
				{
					Name: "change",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "current", Required: true},
						&cli.StringFlag{Name: "new", Required: true},
					},
					Action: a.changePassword,
				},
				{
					Name:   "forgot",
					Flags:  []cli.Flag{&cli.StringFlag{Name: "email", Required: true}},
					Action: a.forgotPassword,
				},
				{
					Name: "reset",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "token", Required: true},
						&cli.StringFlag{Name: "new", Required: true},
					},
					Action: a.resetPassword,
				},
			},
		},
		{
			Name:  "books",
			Usage: "List books in the catalog",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "page"},
				&cli.IntFlag{Name: "limit"},
				&cli.StringFlag{Name: "category"},
				&cli.StringFlag{Name: "search"},
				&cli.StringFlag{Name: "sort", Usage: "title, author, publishedDate or rating"},
				&cli.StringFlag{Name: "order", Usage: "asc or desc"},
			},
			Action: a.books,
		},
		{
			Name:      "search",
			Usage:     "Search the catalog",
			ArgsUsage: "QUERY",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "page"},
				&cli.IntFlag{Name: "limit"},
				&cli.StringFlag{Name: "category"},
			},
			Action: a.search,
		},
		{
			Name:   "categories",
			Usage:  "List categories",
			Action: a.categories,
		},
		{
			Name:  "favorites",
			Usage: "Show or change favorite books",
			Subcommands: []*cli.Command{
				{Name: "list", Action: a.favorites},
				{Name: "add", ArgsUsage: "BOOK_ID", Action: a.addFavorite},
				{Name: "remove", ArgsUsage: "BOOK_ID", Action: a.removeFavorite},
			},
		},
		{
			Name:    "reading-list",
			Aliases: []string{"rl"},
			Usage:   "Show or change the reading list",
			Subcommands: []*cli.Command{
				{Name: "list", Action: a.readingList},
				{Name: "add", ArgsUsage: "BOOK_ID", Action: a.addToReadingList},
				{Name: "remove", ArgsUsage: "BOOK_ID", Action: a.removeFromReadingList},
			},
		},
		{
			Name:  "progress",
			Usage: "Show or record reading progress",
			Subcommands: []*cli.Command{
				{Name: "show", ArgsUsage: "BOOK_ID", Action: a.showProgress},
				{
					Name:      "set",
					ArgsUsage: "BOOK_ID",
					Flags: []cli.Flag{
						&cli.IntFlag{Name: "page", Required: true},
						&cli.IntFlag{Name: "total", Required: true},
					},
					Action: a.setProgress,
				},
			},
		},
		{
			Name:      "download",
			Usage:     "Print the download link of a book",
			ArgsUsage: "BOOK_ID",
			Action:    a.download,
		},
		{
			Name:   "dashboard",
			Usage:  "Load the home screen: categories, popular, recent, lists and notifications",
			Flags:  []cli.Flag{&cli.IntFlag{Name: "limit", Value: catalog.DefaultListLimit}},
			Action: a.dashboard,
		},
		{
			Name:    "notifications",
			Aliases: []string{"n"},
			Usage:   "Read and manage notifications",
			Subcommands: []*cli.Command{
				{Name: "list", Action: a.notifications},
				{Name: "read", ArgsUsage: "ID", Action: a.markRead},
				{Name: "read-all", Action: a.markAllRead},
				{Name: "delete", ArgsUsage: "ID", Action: a.deleteNotification},
				{Name: "settings", Action: a.notificationSettings},
			},
		},
		{
			Name:  "push",
			Usage: "Device registration and push event handling",
			Subcommands: []*cli.Command{
				{
					Name:   "register",
					Flags:  []cli.Flag{&cli.StringFlag{Name: "token", Required: true}},
					Action: a.pushRegister,
				},
				{
					Name:  "deliver",
					Usage: "Feed a push event through the notification bridge",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "id"},
						&cli.StringFlag{Name: "title", Required: true},
						&cli.StringFlag{Name: "message"},
						&cli.StringFlag{Name: "type", Value: string(models.NotificationSystem)},
						&cli.StringFlag{Name: "book-id"},
						&cli.StringFlag{Name: "category-id"},
						&cli.BoolFlag{Name: "tap", Usage: "Treat the event as opened by the user"},
					},
					Action: a.pushDeliver,
				},
			},
		},
		{
			Name:      "remind",
			Usage:     "Run reading reminders until interrupted",
			ArgsUsage: "BOOK_TITLE",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "schedule", Usage: "Cron schedule, defaults to push.daily_reminder"},
				&cli.DurationFlag{Name: "in", Usage: "Fire a single reminder after this delay instead"},
			},
			Action: a.remind,
		},
	}
}

func firstArg(c *cli.Context, name string) (string, error) {
	if c.NArg() < 1 || c.Args().First() == "" {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return c.Args().First(), nil
}

func optionalInt(c *cli.Context, name string) *int {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Int(name)
	return &v
}

func optionalString(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

// authed restores the stored session and fails when there is none
func (a *cliApp) authed(c *cli.Context) error {
	a.rt.restore(c.Context)
	return a.rt.requireSession()
}

func (a *cliApp) login(c *cli.Context) error {
	email := c.String("email")
	if !util.ValidateEmail(email) {
		return fmt.Errorf("%q is not a valid email address", email)
	}
	if err := a.rt.session.Login(c.Context, models.LoginRequest{Email: email, Password: c.String("password")}); err != nil {
		return err
	}
	printUser(a.out, a.rt.session.Snapshot().User)
	return nil
}

func (a *cliApp) register(c *cli.Context) error {
	email := c.String("email")
	if !util.ValidateEmail(email) {
		return fmt.Errorf("%q is not a valid email address", email)
	}
	if !util.IsValidPassword(c.String("password")) {
		return fmt.Errorf("password needs at least %d characters with upper case, lower case and a digit", util.MinPasswordLength)
	}
	err := a.rt.session.Register(c.Context, models.RegisterRequest{
		Email:     email,
		Password:  c.String("password"),
		Username:  c.String("username"),
		FirstName: c.String("first-name"),
		LastName:  c.String("last-name"),
	})
	if err != nil {
		return err
	}
	printUser(a.out, a.rt.session.Snapshot().User)
	return nil
}

func (a *cliApp) logout(c *cli.Context) error {
	a.rt.restore(c.Context)
	if err := a.rt.session.Logout(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *cliApp) whoami(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	printUser(a.out, a.rt.session.Snapshot().User)
	return nil
}

func (a *cliApp) refresh(c *cli.Context) error {
	a.rt.restore(c.Context)
	if err := a.rt.session.RefreshSession(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Session refreshed")
	return nil
}

func (a *cliApp) updateProfile(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	err := a.rt.session.UpdateProfile(c.Context, models.UpdateUserRequest{
		Username:  optionalString(c, "username"),
		FirstName: optionalString(c, "first-name"),
		LastName:  optionalString(c, "last-name"),
		Avatar:    optionalString(c, "avatar"),
	})
	if err != nil {
		return err
	}
	printUser(a.out, a.rt.session.Snapshot().User)
	return nil
}

func (a *cliApp) changePassword(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	if !util.IsValidPassword(c.String("new")) {
		return fmt.Errorf("new password needs at least %d characters with upper case, lower case and a digit", util.MinPasswordLength)
	}
	if err := a.rt.session.ChangePassword(c.Context, c.String("current"), c.String("new")); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed")
	return nil
}

func (a *cliApp) forgotPassword(c *cli.Context) error {
	if err := a.rt.session.ForgotPassword(c.Context, c.String("email")); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Check your inbox for a reset link")
	return nil
}

func (a *cliApp) resetPassword(c *cli.Context) error {
	if err := a.rt.session.ResetPassword(c.Context, c.String("token"), c.String("new")); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password reset")
	return nil
}

func (a *cliApp) books(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	params := models.GetBooksParams{
		Page:       optionalInt(c, "page"),
		Limit:      optionalInt(c, "limit"),
		CategoryID: c.String("category"),
		Search:     c.String("search"),
		SortBy:     models.SortField(c.String("sort")),
		SortOrder:  models.SortOrder(c.String("order")),
	}
	if err := a.rt.library.FetchBooks(c.Context, params); err != nil {
		return err
	}
	snap := a.rt.library.Snapshot()
	printBooks(a.out, snap.Items)
	printPagination(a.out, snap.Pagination)
	return nil
}

func (a *cliApp) search(c *cli.Context) error {
	query, err := firstArg(c, "QUERY")
	if err != nil {
		return err
	}
	if err := a.authed(c); err != nil {
		return err
	}
	params := models.SearchBooksParams{
		Query:      query,
		Page:       optionalInt(c, "page"),
		Limit:      optionalInt(c, "limit"),
		CategoryID: c.String("category"),
	}
	if err := a.rt.library.SearchBooks(c.Context, params); err != nil {
		return err
	}
	printBooks(a.out, a.rt.library.Snapshot().SearchResults)
	return nil
}

func (a *cliApp) categories(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.library.FetchCategories(c.Context); err != nil {
		return err
	}
	printCategories(a.out, a.rt.library.Snapshot().Categories)
	return nil
}

func (a *cliApp) favorites(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.library.FetchFavorites(c.Context); err != nil {
		return err
	}
	printBooks(a.out, a.rt.library.Snapshot().Favorites)
	return nil
}

func (a *cliApp) addFavorite(c *cli.Context) error {
	id, err := firstArg(c, "BOOK_ID")
	if err != nil {
		return err
	}
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.library.AddToFavorites(c.Context, id); err != nil {
		return err
	}
	printBooks(a.out, a.rt.library.Snapshot().Favorites)
	return nil
}

func (a *cliApp) removeFavorite(c *cli.Context) error {
	id, err := firstArg(c, "BOOK_ID")
	if err != nil {
		return err
	}
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.library.RemoveFromFavorites(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %s from favorites\n", id)
	return nil
}

func (a *cliApp) readingList(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.library.FetchReadingList(c.Context); err != nil {
		return err
	}
	printBooks(a.out, a.rt.library.Snapshot().ReadingList)
	return nil
}

func (a *cliApp) addToReadingList(c *cli.Context) error {
	id, err := firstArg(c, "BOOK_ID")
	if err != nil {
		return err
	}
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.library.AddToReadingList(c.Context, id); err != nil {
		return err
	}
	printBooks(a.out, a.rt.library.Snapshot().ReadingList)
	return nil
}

func (a *cliApp) removeFromReadingList(c *cli.Context) error {
	id, err := firstArg(c, "BOOK_ID")
	if err != nil {
		return err
	}
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.library.RemoveFromReadingList(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %s from reading list\n", id)
	return nil
}

func (a *cliApp) showProgress(c *cli.Context) error {
	id, err := firstArg(c, "BOOK_ID")
	if err != nil {
		return err
	}
	if err := a.authed(c); err != nil {
		return err
	}
	progress, err := a.rt.library.ReadingProgress(c.Context, id)
	if err != nil {
		return err
	}
	printProgress(a.out, progress)
	return nil
}

func (a *cliApp) setProgress(c *cli.Context) error {
	id, err := firstArg(c, "BOOK_ID")
	if err != nil {
		return err
	}
	if err := a.authed(c); err != nil {
		return err
	}
	page, total := c.Int("page"), c.Int("total")
	if page < 0 || total <= 0 || page > total {
		return fmt.Errorf("page must be between 0 and total")
	}
	progress := models.ReadingProgress{
		BookID:      id,
		CurrentPage: page,
		TotalPages:  total,
		LastReadAt:  time.Now().UTC().Format(time.RFC3339),
		IsCompleted: page == total,
	}
	if err := a.rt.library.UpdateReadingProgress(c.Context, progress); err != nil {
		return err
	}
	printProgress(a.out, &progress)
	return nil
}

func (a *cliApp) download(c *cli.Context) error {
	id, err := firstArg(c, "BOOK_ID")
	if err != nil {
		return err
	}
	if err := a.authed(c); err != nil {
		return err
	}
	url, err := a.rt.library.DownloadURL(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, url)
	return nil
}

// dashboard dispatches the home screen intents concurrently. Every slice is
// printed even if some of them failed.
func (a *cliApp) dashboard(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	limit := c.Int("limit")
	lib, box := a.rt.library, a.rt.inbox

	var g errgroup.Group
	g.SetLimit(4)
	errs := make([]error, 6)
	tasks := []func() error{
		func() error { return lib.FetchCategories(c.Context) },
		func() error { return lib.FetchPopular(c.Context, limit) },
		func() error { return lib.FetchRecent(c.Context, limit) },
		func() error { return lib.FetchFavorites(c.Context) },
		func() error { return lib.FetchReadingList(c.Context) },
		func() error { return box.FetchNotifications(c.Context) },
	}
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			errs[i] = task()
			return nil
		})
	}
	g.Wait()

	snap := lib.Snapshot()
	section(a.out, "Categories")
	printCategories(a.out, snap.Categories)
	section(a.out, "Popular")
	printBooks(a.out, snap.Popular)
	section(a.out, "Recently added")
	printBooks(a.out, snap.Recent)
	section(a.out, "Favorites")
	printBooks(a.out, snap.Favorites)
	section(a.out, "Reading list")
	printBooks(a.out, snap.ReadingList)
	section(a.out, "Notifications")
	printNotifications(a.out, box.Snapshot())

	return errors.Join(errs...)
}

func (a *cliApp) notifications(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.inbox.FetchNotifications(c.Context); err != nil {
		return err
	}
	printNotifications(a.out, a.rt.inbox.Snapshot())
	return nil
}

func (a *cliApp) markRead(c *cli.Context) error {
	id, err := firstArg(c, "ID")
	if err != nil {
		return err
	}
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.inbox.FetchNotifications(c.Context); err != nil {
		return err
	}
	if err := a.rt.inbox.MarkAsRead(c.Context, id); err != nil {
		return err
	}
	printNotifications(a.out, a.rt.inbox.Snapshot())
	return nil
}

func (a *cliApp) markAllRead(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.inbox.MarkAllAsRead(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "All notifications marked as read")
	return nil
}

func (a *cliApp) deleteNotification(c *cli.Context) error {
	id, err := firstArg(c, "ID")
	if err != nil {
		return err
	}
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.inbox.DeleteNotification(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted notification %s\n", id)
	return nil
}

func (a *cliApp) notificationSettings(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	if err := a.rt.inbox.FetchSettings(c.Context); err != nil {
		return err
	}
	printSettings(a.out, a.rt.inbox.Snapshot().Settings)
	return nil
}

func (a *cliApp) pushRegister(c *cli.Context) error {
	if err := a.authed(c); err != nil {
		return err
	}
	a.rt.bridge.OnRegister(c.Context, c.String("token"))
	return nil
}

func (a *cliApp) pushDeliver(c *cli.Context) error {
	event := push.Event{
		ID:              c.String("id"),
		Title:           c.String("title"),
		Message:         c.String("message"),
		UserInteraction: c.Bool("tap"),
		Data: &push.TapPayload{
			Type:       models.NotificationType(c.String("type")),
			BookID:     c.String("book-id"),
			CategoryID: c.String("category-id"),
		},
	}
	if !a.rt.bridge.OnNotification(c.Context, event) {
		fmt.Fprintln(a.out, "Duplicate event ignored")
	}
	printNotifications(a.out, a.rt.inbox.Snapshot())
	return nil
}

func (a *cliApp) remind(c *cli.Context) error {
	title, err := firstArg(c, "BOOK_TITLE")
	if err != nil {
		return err
	}
	scheduler := a.rt.scheduler

	if delay := c.Duration("in"); delay > 0 {
		id := scheduler.ScheduleReadingReminder(title, time.Now().Add(delay))
		fmt.Fprintf(a.out, "Reminder %s scheduled in %s\n", id, delay)
		for scheduler.Pending() > 0 {
			select {
			case <-c.Context.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
		}
		return nil
	}

	spec := c.String("schedule")
	if spec == "" {
		spec = a.rt.cfg.Push.DailyReminder
	}
	if spec == "" {
		return fmt.Errorf("no schedule given and push.daily_reminder is not configured")
	}
	id, err := scheduler.ScheduleDailyReminder(title, spec)
	if err != nil {
		return err
	}
	if next, ok := scheduler.Next(id); ok {
		fmt.Fprintf(a.out, "Next reminder at %s\n", next.Format(time.RFC1123))
	}
	<-c.Context.Done()
	return nil
}
