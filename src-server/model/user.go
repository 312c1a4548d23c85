package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Role string

const (
	ROLE_USER  = Role("user")
	ROLE_STAFF = Role("staff")
	ROLE_ADMIN = Role("admin")
)

// ParseRole lowercases and surrounding spaces, "  Admin" is ROLE_ADMIN.
func ParseRole(s string) (Role, error) {
	r := Role(cases.Lower(language.Und).String(strings.TrimSpace(s)))
	switch r {
	case ROLE_USER, ROLE_STAFF, ROLE_ADMIN:
		return r, nil
	}
	return "", fmt.Errorf("ParseRole: unknown role %q", s)
}

// The identity record the auth middleware resolves bearer tokens against.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID   string `bun:"id,pk,notnull,unique"`
	Role Role   `bun:"role,notnull,type:varchar"`
}

func (u *User) Upsert(ctx context.Context, db bun.IDB) error {
	if u.ID == "" {
		return fmt.Errorf("user id is empty")
	}

	_, err := db.
		NewInsert().
		Model(u).
		On("CONFLICT (id) DO UPDATE").
		Set("role = EXCLUDED.role").
		Exec(ctx)

	return err
}

// Returns sql.ErrNoRows (wrapped) when the user does not exist.
func GetUser(ctx context.Context, db bun.IDB, id string) (*User, error) {
	u := new(User)
	if err := db.NewSelect().
		Model(u).
		Where("id = ?", id).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	return u, nil
}
