package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ai-zoo-bot/pkg/db"
	"ai-zoo-bot/pkg/zoo"

	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"
)

type Messenger interface {
	SendMessage(ctx context.Context, channelID snowflake.ID, content string) error
}

// Sender posts a greeting, or a given text, to the zoo channel.
type Sender struct {
	messenger Messenger
	store     db.Store
	channelID snowflake.ID
	location  *time.Location
	now       func() time.Time
}

// NewSender creates a sender. store may be nil and location defaults to
// time.Local.
func NewSender(messenger Messenger, store db.Store, channelID snowflake.ID, location *time.Location) *Sender {
	if location == nil {
		location = time.Local
	}
	return &Sender{
		messenger: messenger,
		store:     store,
		channelID: channelID,
		location:  location,
		now:       time.Now,
	}
}

// Send posts the words of args joined by spaces, or a greeting for the
// current time of day when args is empty. It returns what was sent.
func (s *Sender) Send(ctx context.Context, args []string) (string, error) {
	if s.channelID == 0 {
		return "", zoo.ErrNoChannel
	}
	now := s.now().In(s.location)
	content := strings.TrimSpace(strings.Join(args, " "))
	if content == "" {
		content = Greeting(now)
	}
	if err := s.messenger.SendMessage(ctx, s.channelID, content); err != nil {
		return "", fmt.Errorf("schedule: error while sending message: %w", err)
	}
	slog.Info("schedule: sent scheduled message", slog.Any("channel.id", s.channelID), slog.String("content", content))

	if s.store != nil {
		err := s.store.SaveScheduled(ctx, db.ScheduledMessage{
			ChannelID: s.channelID,
			Content:   content,
			SentAt:    now,
		})
		if err != nil {
			slog.Error("schedule: error while saving scheduled message", tint.Err(err))
		}
	}
	return content, nil
}

// Runner calls a job on cron schedules until its context is done.
type Runner struct {
	cron      *cron.Cron
	schedules []cron.Schedule
	location  *time.Location
	job       func(ctx context.Context) error
}

// NewRunner parses the five-field cron specs, evaluated in location.
func NewRunner(location *time.Location, specs []string, job func(ctx context.Context) error) (*Runner, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("schedule: no cron specs given")
	}
	schedules := make([]cron.Schedule, 0, len(specs))
	for _, spec := range specs {
		schedule, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("schedule: invalid cron spec %q: %w", spec, err)
		}
		schedules = append(schedules, schedule)
	}
	if location == nil {
		location = time.Local
	}
	logger := cronLogger{}
	return &Runner{
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		schedules: schedules,
		location:  location,
		job:       job,
	}, nil
}

// Next returns the next activation after t across all schedules.
func (r *Runner) Next(t time.Time) time.Time {
	var next time.Time
	for _, schedule := range r.schedules {
		if n := schedule.Next(t); next.IsZero() || n.Before(next) {
			next = n
		}
	}
	return next
}

func (r *Runner) Run(ctx context.Context) error {
	for _, schedule := range r.schedules {
		r.cron.Schedule(schedule, cron.FuncJob(func() {
			if err := r.job(ctx); err != nil {
				slog.Error("schedule: error while running scheduled job", tint.Err(err))
			}
		}))
	}
	r.cron.Start()
	slog.Info("schedule: runner started", slog.Int("schedules", len(r.schedules)), slog.Time("next", r.Next(time.Now().In(r.location))))
	<-ctx.Done()
	<-r.cron.Stop().Done()
	return nil
}

// cronLogger adapts cron's logger to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("schedule: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("schedule: "+msg, append(keysAndValues, tint.Err(err))...)
}
