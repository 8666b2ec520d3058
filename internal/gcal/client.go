// Package gcal mirrors pending reminders into a Google Calendar.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	_ "time/tzdata"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"taskledger/internal/service"
)

// Client implements service.CalendarClient on top of the Calendar v3 API.
type Client struct {
	events     *calendar.EventsService
	calendarID string
}

// New builds a client. Credentials come from opts, typically
// option.WithCredentialsFile.
func New(ctx context.Context, calendarID string, opts ...option.ClientOption) (*Client, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Client{events: svc.Events, calendarID: calendarID}, nil
}

func (c *Client) CreateEvent(ctx context.Context, ev service.CalendarEvent) (string, error) {
	start := ev.Start
	if ev.TimeZone != "" {
		if loc, err := time.LoadLocation(ev.TimeZone); err == nil {
			start = start.In(loc)
		}
	}
	end := start.Add(ev.Duration)

	created, err := c.events.Insert(c.calendarID, &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: ev.TimeZone},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: ev.TimeZone},
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       []*calendar.EventReminder{{Method: "popup", Minutes: 0}},
			ForceSendFields: []string{"UseDefault"},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent removes an event. Events that are already gone count as deleted.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err == nil || isGone(err) {
		return nil
	}
	return fmt.Errorf("delete event %s: %w", eventID, err)
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
}
