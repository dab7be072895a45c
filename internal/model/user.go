package model

import "time"

// Permissions granted through roles.
const (
	PermAdmin         = "admin"
	PermMembersRead   = "members:read"
	PermMembersWrite  = "members:write"
	PermFinanceRead   = "finance:read"
	PermFinanceWrite  = "finance:write"
	PermSportRead     = "sport:read"
	PermSportWrite    = "sport:write"
	PermMeetingsRead  = "meetings:read"
	PermMeetingsWrite = "meetings:write"
	PermSiteWrite     = "site:write"
)

// AllPermissions lists every permission a role may hold.
var AllPermissions = []string{
	PermAdmin,
	PermMembersRead, PermMembersWrite,
	PermFinanceRead, PermFinanceWrite,
	PermSportRead, PermSportWrite,
	PermMeetingsRead, PermMeetingsWrite,
	PermSiteWrite,
}

type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	RoleID    int64     `json:"role_id"`
	RoleName  string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
