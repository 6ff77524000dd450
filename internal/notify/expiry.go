package notify

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"vibedb/internal/storage/postgres"
)

// warningDays are the checkpoints at which an expiry warning goes out.
var warningDays = []int{14, 7, 3, 1}

// ExpiryJob periodically warns users whose passwords are about to expire.
type ExpiryJob struct {
	store    *postgres.Store
	notifier Notifier
	log      *slog.Logger
	interval time.Duration

	// sent tracks (userID, daysLeft) pairs warned during this process
	// lifetime so restarts at most re-send one warning per checkpoint.
	sent map[string]struct{}
}

// NewExpiryJob creates the job. Interval defaults to one hour.
func NewExpiryJob(store *postgres.Store, notifier Notifier, log *slog.Logger, interval time.Duration) *ExpiryJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryJob{
		store:    store,
		notifier: notifier,
		log:      log,
		interval: interval,
		sent:     make(map[string]struct{}),
	}
}

// Run blocks until ctx is canceled, checking on each tick.
func (j *ExpiryJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.check(ctx)
		}
	}
}

func (j *ExpiryJob) check(ctx context.Context) {
	users, err := j.store.Users().ListExpiringPasswords(ctx, 14*24*time.Hour)
	if err != nil {
		j.log.Error("failed to list expiring passwords", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, user := range users {
		if user.PasswordExpiresAt == nil {
			continue
		}
		daysLeft := int(user.PasswordExpiresAt.Sub(now).Hours() / 24)

		warn := false
		for _, d := range warningDays {
			if daysLeft == d {
				warn = true
				break
			}
		}
		if !warn {
			continue
		}

		key := string(user.ID) + "/" + strconv.Itoa(daysLeft)
		if _, ok := j.sent[key]; ok {
			continue
		}

		if err := j.notifier.SendExpiryWarning(ctx, user.Email, user.Username, daysLeft); err != nil {
			j.log.Error("failed to send expiry warning", "user_id", user.ID, "error", err)
			continue
		}
		j.sent[key] = struct{}{}
	}
}
