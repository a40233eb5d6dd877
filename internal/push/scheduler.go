package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/drallgood/ebook-reader/internal/logger"
	"github.com/drallgood/ebook-reader/internal/models"
)

// ReadingReminderTitle is the title of reading reminders
const ReadingReminderTitle = "Reading Reminder"

// LocalNotification is a notification raised on the device itself
type LocalNotification struct {
	ID      string
	Title   string
	Message string
	Payload TapPayload
}

// Presenter shows local notifications and the app badge
type Presenter interface {
	Present(LocalNotification)
	SetBadge(count int)
}

// Scheduler raises local notifications now, once at a given time, or on a
// recurring cron schedule.
type Scheduler struct {
	presenter Presenter
	cron      *cron.Cron
	logger    *logger.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	entries map[string]cron.EntryID
	started bool
	now     func() time.Time
}

// NewScheduler creates a scheduler delivering to presenter
func NewScheduler(presenter Presenter, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Component("scheduler")
	}
	return &Scheduler{
		presenter: presenter,
		cron:      cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
		logger:    log,
		timers:    make(map[string]*time.Timer),
		entries:   make(map[string]cron.EntryID),
		now:       time.Now,
	}
}

// ValidateSchedule checks a five-field cron expression
func ValidateSchedule(spec string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

// Show presents a notification immediately and returns its ID
func (s *Scheduler) Show(title, message string, payload TapPayload) string {
	n := LocalNotification{ID: uuid.NewString(), Title: title, Message: message, Payload: payload}
	s.presenter.Present(n)
	return n.ID
}

// Schedule presents a notification once at the given time. A time in the
// past fires immediately.
func (s *Scheduler) Schedule(title, message string, at time.Time, payload TapPayload) string {
	n := LocalNotification{ID: uuid.NewString(), Title: title, Message: message, Payload: payload}

	s.mu.Lock()
	defer s.mu.Unlock()

	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.timers[n.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, pending := s.timers[n.ID]
		delete(s.timers, n.ID)
		s.mu.Unlock()
		if pending {
			s.presenter.Present(n)
		}
	})

	s.logger.Debug("Scheduled local notification", map[string]interface{}{
		"id":    n.ID,
		"at":    at.Format(time.RFC3339),
		"title": title,
	})
	return n.ID
}

func readingReminder(bookTitle string) (string, TapPayload) {
	return fmt.Sprintf("Continue reading \"%s\"", bookTitle), TapPayload{Type: models.NotificationReadingReminder}
}

// ScheduleReadingReminder reminds the user to continue bookTitle at the given time
func (s *Scheduler) ScheduleReadingReminder(bookTitle string, at time.Time) string {
	message, payload := readingReminder(bookTitle)
	return s.Schedule(ReadingReminderTitle, message, at, payload)
}

// ScheduleDailyReminder reminds the user to continue bookTitle on a cron
// schedule such as "0 20 * * *".
func (s *Scheduler) ScheduleDailyReminder(bookTitle, spec string) (string, error) {
	if err := ValidateSchedule(spec); err != nil {
		return "", err
	}
	message, payload := readingReminder(bookTitle)
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(spec, func() {
		s.presenter.Present(LocalNotification{ID: id, Title: ReadingReminderTitle, Message: message, Payload: payload})
	})
	if err != nil {
		return "", fmt.Errorf("failed to schedule reminder: %w", err)
	}
	s.entries[id] = entryID
	if !s.started {
		s.cron.Start()
		s.started = true
	}

	s.logger.Info("Scheduled recurring reading reminder", map[string]interface{}{
		"id":       id,
		"schedule": spec,
		"book":     bookTitle,
	})
	return id, nil
}

// Next returns when a recurring reminder fires next
func (s *Scheduler) Next(id string) (time.Time, bool) {
	s.mu.Lock()
	entryID, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(entryID)
	return entry.Next, entry.Valid()
}

// Pending counts scheduled one-shot and recurring notifications
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers) + len(s.entries)
}

// Cancel removes a single scheduled notification
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
		return true
	}
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
		return true
	}
	return false
}

// CancelAll removes every scheduled notification
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	for id, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// SetBadgeCount shows count on the app icon
func (s *Scheduler) SetBadgeCount(count int) {
	if count < 0 {
		count = 0
	}
	s.presenter.SetBadge(count)
}

// ClearBadge removes the app icon badge
func (s *Scheduler) ClearBadge() {
	s.presenter.SetBadge(0)
}

// Stop cancels everything and waits for running cron jobs or ctx
func (s *Scheduler) Stop(ctx context.Context) {
	s.CancelAll()

	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return
	}

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
