package httpdto

import (
	"benome-realtime/internal/events"
	"benome-realtime/internal/services"
)

// ListNotificationsRequest holds query parameters for GET /v1/notifications
type ListNotificationsRequest struct {
	Page       int  `form:"page"`
	Limit      int  `form:"limit"`
	UnreadOnly bool `form:"unreadOnly"`
}

type PaginationDTO struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type ListNotificationsResponse struct {
	Notifications []events.NotificationView `json:"notifications"`
	Pagination    PaginationDTO             `json:"pagination"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

func FromNotificationPage(p services.NotificationPage) ListNotificationsResponse {
	items := make([]events.NotificationView, 0, len(p.Items))
	for _, n := range p.Items {
		items = append(items, events.NewNotificationView(n))
	}
	return ListNotificationsResponse{
		Notifications: items,
		Pagination: PaginationDTO{
			Page:  p.Page,
			Limit: p.Limit,
			Total: p.Total,
			Pages: p.Pages,
		},
	}
}
