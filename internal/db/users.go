package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Users is the durable profile store. Methods bound their statements with
// opTimeout the same way Events does.
type Users struct {
	db        *gorm.DB
	opTimeout time.Duration
}

func NewUsers(db *gorm.DB, opTimeout time.Duration) *Users {
	return &Users{db: db, opTimeout: opTimeout}
}

// FindByUserID returns the profile for user_id, or (nil, nil) when absent.
func (s *Users) FindByUserID(ctx context.Context, userID string) (*User, error) {
	ctx, cancel := opCtx(ctx, s.opTimeout)
	defer cancel()

	var u User
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

// Create inserts a new profile. The unique index on user_id is the backstop
// against concurrent first registrations; the caller sees gorm.ErrDuplicatedKey.
func (s *Users) Create(ctx context.Context, u *User) error {
	ctx, cancel := opCtx(ctx, s.opTimeout)
	defer cancel()
	return s.db.WithContext(ctx).Create(u).Error
}

// Save persists an updated profile. The final write relies on the row-level
// atomicity of the database, not on any in-process lock.
func (s *Users) Save(ctx context.Context, u *User) error {
	ctx, cancel := opCtx(ctx, s.opTimeout)
	defer cancel()
	return s.db.WithContext(ctx).Save(u).Error
}

// List returns all profiles with metadata omitted, newest activity first.
func (s *Users) List(ctx context.Context) ([]User, error) {
	ctx, cancel := opCtx(ctx, s.opTimeout)
	defer cancel()

	var users []User
	err := s.db.WithContext(ctx).
		Select("id", "user_id", "device_info", "last_session_id", "last_active", "created_at").
		Order("last_active DESC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
