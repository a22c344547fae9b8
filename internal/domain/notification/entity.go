package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeNewMessage         Type = "NEW_MESSAGE"
	TypeNewOffer           Type = "NEW_OFFER"
	TypeListingApproved    Type = "LISTING_APPROVED"
	TypeListingRejected    Type = "LISTING_REJECTED"
	TypePaymentReceived    Type = "PAYMENT_RECEIVED"
	TypePaymentSent        Type = "PAYMENT_SENT"
	TypeNewReview          Type = "NEW_REVIEW"
	TypeListingViewed      Type = "LISTING_VIEWED"
	TypeListingExpired     Type = "LISTING_EXPIRED"
	TypeKYCApproved        Type = "KYC_APPROVED"
	TypeKYCRejected        Type = "KYC_REJECTED"
	TypeSystemAnnouncement Type = "SYSTEM_ANNOUNCEMENT"
)

var Types = []Type{
	TypeNewMessage,
	TypeNewOffer,
	TypeListingApproved,
	TypeListingRejected,
	TypePaymentReceived,
	TypePaymentSent,
	TypeNewReview,
	TypeListingViewed,
	TypeListingExpired,
	TypeKYCApproved,
	TypeKYCRejected,
	TypeSystemAnnouncement,
}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

const (
	MaxTitleLength = 255
	MaxLinkLength  = 500
)

// Notification represents the notifications table.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      Type
	Title     string
	Content   string
	Link      sql.NullString
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	IsRead    bool
	CreatedAt time.Time
}

func (Notification) TableName() string {
	return "notifications"
}
