package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Post status values. The state machine is
// pending --accept--> accepted --collect--> collected, with
// accepted --release--> pending and collected --uncollect--> accepted
// as the two reversals. No transition skips a state.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusCollected = "collected"
)

// Platform roles.
const (
	RoleContributor = "contributor"
	RoleVolunteer   = "volunteer"
	RoleRecycler    = "recycler"
	RoleNGO         = "ngo"
)

// Thread participant roles, used to pick the unread counter that applies.
const (
	ThreadRoleContributor = "contributor"
	ThreadRoleCollector   = "collector"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// User maps to the users collection.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string        `bson:"name" json:"name"`
	Email     string        `bson:"email" json:"email"`
	Password  string        `bson:"password" json:"-"`
	Role      string        `bson:"role" json:"role"`
	Address   string        `bson:"address,omitempty" json:"address,omitempty"`
	Contact   string        `bson:"contact,omitempty" json:"contact,omitempty"`
	Location  *Location     `bson:"location,omitempty" json:"location,omitempty"`
	NgoID     string        `bson:"ngo_id,omitempty" json:"ngoId,omitempty"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updatedAt"`
}

// WastePost maps to the waste_posts collection.
//
// AcceptedBy is empty exactly when Status is pending; the store's
// transition operations are the only writers of Status/AcceptedBy.
type WastePost struct {
	ID               bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ContributorID    string        `bson:"contributor_id" json:"contributorId"`
	ContributorEmail string        `bson:"contributor_email" json:"contributorEmail"`
	WasteType        string        `bson:"waste_type" json:"wasteType"`
	Quantity         float64       `bson:"quantity" json:"quantity"`
	Location         *Location     `bson:"location,omitempty" json:"location,omitempty"`
	Address          string        `bson:"address,omitempty" json:"address,omitempty"`
	AvailableDate    string        `bson:"available_date,omitempty" json:"availableDate,omitempty"`
	AvailableFrom    string        `bson:"available_from,omitempty" json:"availableFrom,omitempty"`
	AvailableTo      string        `bson:"available_to,omitempty" json:"availableTo,omitempty"`
	SellForFree      bool          `bson:"sell_for_free" json:"sellForFree"`
	ImageURL         string        `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	Status           string        `bson:"status" json:"status"`
	AcceptedBy       string        `bson:"accepted_by,omitempty" json:"acceptedBy,omitempty"`
	CreatedAt        time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updatedAt"`
}

// ChatThread maps to the chats collection. Exactly one thread exists per
// (post, participant pair); ParticipantKey is the sorted id pair backing
// the unique index that enforces it.
type ChatThread struct {
	ID                bson.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID            string        `bson:"post_id" json:"postId"`
	ContributorID     string        `bson:"contributor_id" json:"contributorId"`
	CollectorID       string        `bson:"collector_id" json:"collectorId"`
	ParticipantKey    string        `bson:"participant_key" json:"-"`
	CreatedAt         time.Time     `bson:"created_at" json:"createdAt"`
	LastMessage       string        `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	LastMessageTime   time.Time     `bson:"last_message_time,omitempty" json:"lastMessageTime,omitempty"`
	UnreadContributor int64         `bson:"unread_contributor" json:"unreadContributor"`
	UnreadCollector   int64         `bson:"unread_collector" json:"unreadCollector"`
}

// IsParticipant reports whether userID is one of the two thread members.
func (t *ChatThread) IsParticipant(userID string) bool {
	return userID == t.ContributorID || userID == t.CollectorID
}

// RoleOf returns the thread role of userID, or "" for non-participants.
func (t *ChatThread) RoleOf(userID string) string {
	switch userID {
	case t.ContributorID:
		return ThreadRoleContributor
	case t.CollectorID:
		return ThreadRoleCollector
	}
	return ""
}

// UnreadFor returns the unread counter that applies to userID.
func (t *ChatThread) UnreadFor(userID string) int64 {
	switch userID {
	case t.ContributorID:
		return t.UnreadContributor
	case t.CollectorID:
		return t.UnreadCollector
	}
	return 0
}

// OtherParticipant returns the member of the thread that is not userID.
func (t *ChatThread) OtherParticipant(userID string) string {
	if userID == t.ContributorID {
		return t.CollectorID
	}
	return t.ContributorID
}

// ThreadWithRole is a thread tagged with the caller's role in it, needed
// to interpret which unread counter applies.
type ThreadWithRole struct {
	ChatThread `bson:",inline"`
	Role       string `bson:"-" json:"role"`
}

// Message maps to the messages collection. Messages are append-only;
// the read flag transitions false→true once and never reverts.
type Message struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID    string        `bson:"chat_id" json:"chatId"`
	SenderID  string        `bson:"sender_id" json:"senderId"`
	Text      string        `bson:"text" json:"text"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	Read      bool          `bson:"read" json:"read"`
	PostID    string        `bson:"post_id,omitempty" json:"postId,omitempty"`
	// ClientID is the sender-generated id used to reconcile the sender's
	// optimistic echo with the stored message.
	ClientID string `bson:"client_id,omitempty" json:"clientId,omitempty"`
}

// PostUnread is the unread badge for a post card: the thread involving
// the caller, the counter for the caller's role, and the peer's id.
type PostUnread struct {
	ThreadID           string `json:"chatId"`
	UnreadCount        int64  `json:"unreadCount"`
	OtherParticipantID string `json:"otherUserId"`
}
