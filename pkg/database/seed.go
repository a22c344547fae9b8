package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"benome-realtime/internal/domain/conversation"
	"benome-realtime/internal/domain/message"
	"benome-realtime/internal/domain/notification"
	"benome-realtime/internal/domain/user"
	"benome-realtime/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	TestUserCount int
	WithMessages  bool
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		TestUserCount: 4,
		WithMessages:  true,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Users         []user.User
	Conversations []conversation.Conversation
	Messages      []message.Message
}

var testUserData = []struct {
	email     string
	firstName string
	lastName  string
}{
	{"alice@test.com", "Alice", "Johnson"},
	{"bob@test.com", "Bob", "Smith"},
	{"charlie@test.com", "Charlie", "Brown"},
	{"diana@test.com", "Diana", "Prince"},
	{"edward@test.com", "Edward", "Chen"},
	{"fiona@test.com", "Fiona", "Green"},
}

// Seed creates development users, one conversation per consecutive pair and
// a short message history. Existing users are reused, so it can run twice.
func Seed(ctx context.Context, db *gorm.DB, cfg *SeedConfig, l *logger.Logger) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	if l == nil {
		l = logger.GetGlobalLogger()
	}

	result := &SeedResult{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users, err := seedTestUsers(tx, cfg.TestUserCount)
		if err != nil {
			return fmt.Errorf("failed to seed test users: %w", err)
		}
		result.Users = users

		if len(users) < 2 {
			return nil
		}

		convs, err := seedConversations(tx, users)
		if err != nil {
			return fmt.Errorf("failed to seed conversations: %w", err)
		}
		result.Conversations = convs

		if cfg.WithMessages {
			msgs, err := seedMessages(tx, convs)
			if err != nil {
				return fmt.Errorf("failed to seed messages: %w", err)
			}
			result.Messages = msgs
		}

		return seedWelcomeNotifications(tx, users)
	})
	if err != nil {
		return nil, err
	}

	l.Infof("Database seeding completed: %d users, %d conversations, %d messages",
		len(result.Users), len(result.Conversations), len(result.Messages))
	return result, nil
}

func seedTestUsers(tx *gorm.DB, count int) ([]user.User, error) {
	users := make([]user.User, 0, count)
	for i := 0; i < count && i < len(testUserData); i++ {
		data := testUserData[i]

		var existing user.User
		err := tx.Where("email = ?", data.email).First(&existing).Error
		if err == nil {
			users = append(users, existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		u := user.User{
			ID:        uuid.New(),
			Email:     data.email,
			FirstName: data.firstName,
			LastName:  data.lastName,
		}
		if err := tx.Create(&u).Error; err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func seedConversations(tx *gorm.DB, users []user.User) ([]conversation.Conversation, error) {
	var convs []conversation.Conversation
	for i := 0; i+1 < len(users); i++ {
		a, b := users[i].ID, users[i+1].ID

		var existing conversation.Conversation
		err := tx.Where("(participant1_id = ? AND participant2_id = ?) OR (participant1_id = ? AND participant2_id = ?)", a, b, b, a).
			Where("listing_id IS NULL").
			First(&existing).Error
		if err == nil {
			convs = append(convs, existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		c := conversation.Conversation{
			ID:             uuid.New(),
			Participant1ID: a,
			Participant2ID: b,
		}
		if err := tx.Create(&c).Error; err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, nil
}

func seedMessages(tx *gorm.DB, convs []conversation.Conversation) ([]message.Message, error) {
	lines := []string{
		"Hi, is this still available?",
		"Yes it is. Want to come by and take a look?",
		"Great, would tomorrow afternoon work?",
	}

	var msgs []message.Message
	for _, c := range convs {
		var count int64
		if err := tx.Model(&message.Message{}).Where("conversation_id = ?", c.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			continue
		}

		base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
		var last message.Message
		for i, line := range lines {
			sender := c.Participant1ID
			if i%2 == 1 {
				sender = c.Participant2ID
			}
			m := message.Message{
				ID:             uuid.New(),
				ConversationID: c.ID,
				SenderID:       sender,
				Content:        line,
				IsRead:         i < len(lines)-1,
				CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.Create(&m).Error; err != nil {
				return nil, err
			}
			msgs = append(msgs, m)
			last = m
		}

		if err := tx.Model(&conversation.Conversation{}).
			Where("id = ?", c.ID).
			Updates(map[string]any{"last_message_id": last.ID, "updated_at": last.CreatedAt}).Error; err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func seedWelcomeNotifications(tx *gorm.DB, users []user.User) error {
	var rows []notification.Notification
	for _, u := range users {
		var count int64
		if err := tx.Model(&notification.Notification{}).
			Where("user_id = ? AND type = ?", u.ID, notification.TypeSystemAnnouncement).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		rows = append(rows, notification.Notification{
			ID:       uuid.New(),
			UserID:   u.ID,
			Type:     notification.TypeSystemAnnouncement,
			Title:    "Welcome to Benome",
			Content:  "Messages from buyers and sellers show up here.",
			Metadata: datatypes.JSONMap{"seeded": true},
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}
