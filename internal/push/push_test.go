package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/ebook-reader/internal/models"
)

type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) RegisterDevice(ctx context.Context, deviceToken string) error {
	return m.Called(ctx, deviceToken).Error(0)
}

type recordingInbox struct {
	mu    sync.Mutex
	added []models.Notification
}

func (r *recordingInbox) AddNotification(n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, n)
}

type recordingPresenter struct {
	mu        sync.Mutex
	presented []LocalNotification
	badge     int
	done      chan LocalNotification
}

func newPresenter() *recordingPresenter {
	return &recordingPresenter{done: make(chan LocalNotification, 16)}
}

func (p *recordingPresenter) Present(n LocalNotification) {
	p.mu.Lock()
	p.presented = append(p.presented, n)
	p.mu.Unlock()
	p.done <- n
}

func (p *recordingPresenter) SetBadge(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badge = count
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name    string
		payload TapPayload
		want    Destination
	}{
		{"new book", TapPayload{Type: models.NotificationNewBook, BookID: "b1"}, Destination{Kind: BookDetail, ID: "b1"}},
		{"new book without id", TapPayload{Type: models.NotificationNewBook}, Destination{Kind: Notifications}},
		{"new category", TapPayload{Type: models.NotificationNewCategory, CategoryID: "c1"}, Destination{Kind: Category, ID: "c1"}},
		{"new category without id", TapPayload{Type: models.NotificationNewCategory, BookID: "b1"}, Destination{Kind: Notifications}},
		{"reading reminder", TapPayload{Type: models.NotificationReadingReminder, BookID: "b1"}, Destination{Kind: Notifications}},
		{"system", TapPayload{Type: models.NotificationSystem}, Destination{Kind: Notifications}},
		{"unknown", TapPayload{Type: "PROMO"}, Destination{Kind: Notifications}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.payload))
		})
	}
}

func TestDestinationString(t *testing.T) {
	assert.Equal(t, "book/b1", Destination{Kind: BookDetail, ID: "b1"}.String())
	assert.Equal(t, "notifications", Destination{Kind: Notifications}.String())
}

func TestOnRegister(t *testing.T) {
	ctx := context.Background()
	registrar := &mockRegistrar{}
	registrar.On("RegisterDevice", ctx, "tok-1").Return(nil).Once()
	registrar.On("RegisterDevice", ctx, "tok-2").Return(errors.New("offline")).Once()

	b := NewBridge(registrar, &recordingInbox{}, nil, 0, nil)
	b.OnRegister(ctx, "tok-1")
	// Failures are swallowed
	b.OnRegister(ctx, "tok-2")
	registrar.AssertExpectations(t)
}

func TestOnNotificationDedupes(t *testing.T) {
	inbox := &recordingInbox{}
	var routed []Destination
	b := NewBridge(&mockRegistrar{}, inbox, NavigatorFunc(func(d Destination) { routed = append(routed, d) }), time.Minute, nil)

	event := Event{
		ID:      "n1",
		Title:   "New book",
		Message: "Dune is now available",
		Data:    &TapPayload{Type: models.NotificationNewBook, BookID: "b1"},
	}

	assert.True(t, b.OnNotification(context.Background(), event))
	event.UserInteraction = true
	assert.False(t, b.OnNotification(context.Background(), event))

	require.Len(t, inbox.added, 1)
	n := inbox.added[0]
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, "Dune is now available", n.Body)
	assert.Equal(t, models.NotificationNewBook, n.Type)
	assert.False(t, n.IsRead)
	require.NotNil(t, n.Data)
	assert.Equal(t, "b1", n.Data.BookID)
	assert.NotEmpty(t, n.CreatedAt)

	assert.Equal(t, []Destination{{Kind: BookDetail, ID: "b1"}}, routed)
}

func TestOnNotificationWithoutPayload(t *testing.T) {
	inbox := &recordingInbox{}
	navigated := false
	b := NewBridge(&mockRegistrar{}, inbox, NavigatorFunc(func(Destination) { navigated = true }), 0, nil)

	assert.True(t, b.OnNotification(context.Background(), Event{Title: "Hello", UserInteraction: true}))
	assert.True(t, b.OnNotification(context.Background(), Event{Title: "Hello again"}), "events without ID are never deduplicated")

	require.Len(t, inbox.added, 2)
	assert.NotEmpty(t, inbox.added[0].ID)
	assert.Equal(t, models.NotificationSystem, inbox.added[0].Type)
	assert.Nil(t, inbox.added[0].Data)
	assert.False(t, navigated)
}

func TestScheduleReadingReminder(t *testing.T) {
	p := newPresenter()
	s := NewScheduler(p, nil)
	defer s.Stop(context.Background())

	id := s.ScheduleReadingReminder("Dune", time.Now().Add(10*time.Millisecond))
	assert.NotEmpty(t, id)

	select {
	case n := <-p.done:
		assert.Equal(t, id, n.ID)
		assert.Equal(t, ReadingReminderTitle, n.Title)
		assert.Equal(t, `Continue reading "Dune"`, n.Message)
		assert.Equal(t, models.NotificationReadingReminder, n.Payload.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("reminder was not presented")
	}
	assert.Zero(t, s.Pending())
}

func TestSchedulePastFiresImmediately(t *testing.T) {
	p := newPresenter()
	s := NewScheduler(p, nil)

	s.Schedule("Hi", "now", time.Now().Add(-time.Hour), TapPayload{Type: models.NotificationSystem})
	select {
	case n := <-p.done:
		assert.Equal(t, "Hi", n.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not presented")
	}
}

func TestCancel(t *testing.T) {
	p := newPresenter()
	s := NewScheduler(p, nil)
	defer s.Stop(context.Background())

	one := s.ScheduleReadingReminder("A", time.Now().Add(time.Hour))
	s.ScheduleReadingReminder("B", time.Now().Add(time.Hour))
	daily, err := s.ScheduleDailyReminder("C", "0 20 * * *")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Pending())

	next, ok := s.Next(daily)
	assert.True(t, ok)
	assert.Equal(t, 20, next.Hour())

	assert.True(t, s.Cancel(one))
	assert.False(t, s.Cancel(one))
	assert.Equal(t, 2, s.Pending())

	s.CancelAll()
	assert.Zero(t, s.Pending())
	_, ok = s.Next(daily)
	assert.False(t, ok)
}

func TestScheduleDailyReminderInvalid(t *testing.T) {
	s := NewScheduler(newPresenter(), nil)
	_, err := s.ScheduleDailyReminder("Dune", "every evening")
	require.Error(t, err)
	assert.Zero(t, s.Pending())
}

func TestBadge(t *testing.T) {
	p := newPresenter()
	s := NewScheduler(p, nil)

	s.SetBadgeCount(4)
	assert.Equal(t, 4, p.badge)
	s.SetBadgeCount(-1)
	assert.Equal(t, 0, p.badge)
	s.SetBadgeCount(2)
	s.ClearBadge()
	assert.Equal(t, 0, p.badge)
}
