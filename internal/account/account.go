package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("account not found")

// Account is a user account. Its balance lives in the balance package and
// references the account by ID.
type Account struct {
	ID        uuid.UUID
	Name      string
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt *time.Time
}
