// internal/model/tenant.go
package model

// Tenant is the profile layered on a user. RoomNumber is a cached copy of the
// occupied room's number; empty means absent.
type Tenant struct {
	ID         TenantID `json:"id"`
	UserID     UserID   `json:"user_id"`
	RoomNumber string   `json:"room_number"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
}

func (t Tenant) FullName() string {
	switch {
	case t.FirstName == "":
		return t.LastName
	case t.LastName == "":
		return t.FirstName
	}
	return t.FirstName + " " + t.LastName
}

type User struct {
	ID UserID `json:"id"`
}
