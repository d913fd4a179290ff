package domain

import "time"

// User represents an application user. Credential issuance lives in the
// auth service; the relay core only reads the profile fields.
type User struct {
	ID             string    `db:"id" json:"_id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	ProfilePic     string    `db:"profile_pic" json:"profile_pic"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// UserProfile is the public projection of a user sent over the wire,
// annotated with live presence.
type UserProfile struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	ProfilePic string `json:"profile_pic"`
	Online     bool   `json:"online"`
}

// Profile returns the public projection of u.
func (u *User) Profile(online bool) *UserProfile {
	return &UserProfile{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		Online:     online,
	}
}

// Conversation is the single channel between exactly two users. SenderID is
// the initiator and ReceiverID the other participant; lookups never depend
// on that direction, they go through the canonical PairKey.
type Conversation struct {
	ID         string    `db:"id" json:"_id"`
	PairKey    string    `db:"pair_key" json:"-"`
	SenderID   string    `db:"sender_id" json:"sender"`
	ReceiverID string    `db:"receiver_id" json:"receiver"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Counterpart returns the participant that is not userID.
func (c *Conversation) Counterpart(userID string) string {
	if c.SenderID == userID {
		return c.ReceiverID
	}
	return c.SenderID
}

// PairKey builds the canonical key for the unordered pair {a, b}. Both
// argument orders map to the same key, which is what the store's
// uniqueness constraint hangs off.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Message is immutable once created except for the seen flag, which only
// ever transitions false to true.
type Message struct {
	ID             string    `db:"id" json:"_id"`
	ConversationID string    `db:"conversation_id" json:"-"`
	AuthorID       string    `db:"author_id" json:"msgByUserId"`
	Text           string    `db:"text" json:"text"`
	ImageURL       string    `db:"image_url" json:"imageUrl,omitempty"`
	VideoURL       string    `db:"video_url" json:"videoUrl,omitempty"`
	Seen           bool      `db:"seen" json:"seen"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// ConversationSummary is the derived sidebar projection: the counterpart,
// the latest message, and how many of the counterpart's messages the
// viewer has not seen yet. Computed on demand, never persisted.
type ConversationSummary struct {
	ConversationID string       `json:"_id"`
	UserDetails    *UserProfile `json:"userDetails"`
	LastMessage    *Message     `json:"lastMsg"`
	UnseenCount    int          `json:"unseenMsg"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
