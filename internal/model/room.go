// internal/model/room.go
package model

type Occupancy struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Room is the authoritative source of RoomNumber. CurrentTenant should hold a
// UserID but historically sometimes holds a TenantID.
type Room struct {
	ID            RoomID    `json:"id"`
	RoomNumber    string    `json:"room_number"`
	CurrentTenant RawRef    `json:"current_tenant,omitempty"`
	Occupancy     Occupancy `json:"occupancy"`
}
