// Package directory keeps the phone number to user mapping needed for login.
// The ledger index is the source of truth; the directory is rebuilt from it
// at startup and updated as users register.
package directory

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"
	"github.com/sethvargo/go-retry"

	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/model"
)

type entry struct {
	user     model.UserRecord
	reserved bool
}

// Directory is safe for concurrent use.
type Directory struct {
	users  *cache.Cache
	logger *logger.Logger
}

func New(logger *logger.Logger) *Directory {
	return &Directory{
		users:  cache.New(cache.NoExpiration, 0),
		logger: logger,
	}
}

// Reserve claims phone for a registration in progress. It fails with
// model.ErrConflict when the phone is registered or being registered.
func (d *Directory) Reserve(phone string) error {
	if err := d.users.Add(phone, entry{reserved: true}, cache.NoExpiration); err != nil {
		return fmt.Errorf("%w: phone %s", model.ErrConflict, phone)
	}
	return nil
}

// Release drops a reservation that did not complete. Registered users stay.
func (d *Directory) Release(phone string) {
	v, ok := d.users.Get(phone)
	if !ok {
		return
	}
	if e := v.(entry); e.reserved {
		d.users.Delete(phone)
	}
}

// Commit stores user under its phone, replacing any reservation.
func (d *Directory) Commit(user model.UserRecord) {
	user = user.Normalize()
	d.users.Set(user.Phone, entry{user: user}, cache.NoExpiration)
}

// Lookup returns the registered user for phone.
func (d *Directory) Lookup(phone string) (model.UserRecord, error) {
	v, ok := d.users.Get(phone)
	if !ok {
		return model.UserRecord{}, model.ErrNotFound
	}
	e := v.(entry)
	if e.reserved {
		return model.UserRecord{}, model.ErrNotFound
	}
	return e.user, nil
}

// Len returns the number of phones known, reservations included.
func (d *Directory) Len() int {
	return d.users.ItemCount()
}

// Source lists every registered user.
type Source interface {
	Users(ctx context.Context) ([]model.UserRecord, error)
}

// Hydrate loads all users from src, retrying with b while the source is
// unavailable. Records without a phone are ignored; when two records share a
// phone the later one wins.
func (d *Directory) Hydrate(ctx context.Context, src Source, b retry.Backoff) (int, error) {
	var users []model.UserRecord
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		users, err = src.Users(ctx)
		if err != nil {
			d.logger.Warn("Directory: hydration attempt failed",
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to hydrate directory: %w", err)
	}

	n := 0
	for _, u := range users {
		u = u.Normalize()
		if u.Phone == "" {
			continue
		}
		d.Commit(u)
		n++
	}
	d.logger.Info("Directory: hydrated from ledger index",
		"users", n)
	return n, nil
}
