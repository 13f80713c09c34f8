// internal/model/ids.go
package model

// Identifiers of the three collections are distinct types so a tenant id can
// never be passed where a user id is expected. All hold the hex form of the
// Mongo _id.
type (
	UserID   string
	TenantID string
	RoomID   string
)

// RawRef is an identifier whose category is unknown, as read from
// rooms.currentTenant. Only link repair turns it into a UserID.
type RawRef string

func (id UserID) String() string   { return string(id) }
func (id TenantID) String() string { return string(id) }
func (id RoomID) String() string   { return string(id) }
func (r RawRef) String() string    { return string(r) }

// IsZero reports whether the reference is null or missing.
func (r RawRef) IsZero() bool { return r == "" }

// RefToUser builds the RawRef that a correctly linked room stores for id.
func RefToUser(id UserID) RawRef { return RawRef(id) }
