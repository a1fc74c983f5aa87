package domain

import "errors"

// ErrForbidden is returned when the actor may not modify a resource.
var ErrForbidden = errors.New("forbidden")

// Owned is implemented by resources that belong to a user.
type Owned interface {
	OwnerID() int64
}

// CanModify reports whether actor may change or delete resource.
// Only the owner may; anonymous actors never may.
func CanModify(actor *User, resource Owned) bool {
	if actor == nil || resource == nil {
		return false
	}

	return actor.ID != 0 && actor.ID == resource.OwnerID()
}
