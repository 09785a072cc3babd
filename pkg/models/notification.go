package models

import "github.com/jordanlanch/estatecrm/pkg/schema"

// NotificationListQuery filters the caller's notifications
type NotificationListQuery struct {
	UnreadOnly bool `query:"unread"`
	Page       int  `query:"page" validate:"omitempty,min=1"`
	Limit      int  `query:"limit" validate:"omitempty,min=1,max=100"`
}

// NotificationListResponse is one page of notifications plus the unread total
type NotificationListResponse struct {
	Data        []schema.Notification `json:"data"`
	Pagination  PaginationInfo        `json:"pagination"`
	UnreadCount int64                 `json:"unread_count"`
}

// CountResponse reports how many rows an operation touched
type CountResponse struct {
	Count int64 `json:"count"`
}
