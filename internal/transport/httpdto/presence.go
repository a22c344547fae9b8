package httpdto

import (
	"time"

	"benome-realtime/internal/services"
)

type PresenceDTO struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type PresenceResponse struct {
	Users []PresenceDTO `json:"users"`
}

func FromPresence(snapshots []services.PresenceSnapshot) PresenceResponse {
	users := make([]PresenceDTO, 0, len(snapshots))
	for _, s := range snapshots {
		users = append(users, PresenceDTO{
			UserID:   s.UserID.String(),
			IsOnline: s.IsOnline,
			LastSeen: s.LastSeen,
		})
	}
	return PresenceResponse{Users: users}
}
