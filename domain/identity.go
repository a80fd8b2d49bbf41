package domain

// Role is the authorization level attached to an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Identity is the resolved view of an external user account.
// The chat core never owns accounts; it only snapshots these fields.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// CanModerate reports whether the identity may delete a message it does not own,
// clear the room, or send notice messages.
func (i Identity) CanModerate() bool { return i.Role.IsAdmin() }

// PresenceEntry is one line of the online-users snapshot.
// Connections is always >= 1 while the entry exists; a user open in two
// tabs is represented once.
type PresenceEntry struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Connections int    `json:"connections"`
}
