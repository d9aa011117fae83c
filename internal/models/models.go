package models

import "time"

// Gender values accepted on profile completion
const (
	GenderMale      = "male"
	GenderFemale    = "female"
	GenderNonBinary = "non_binary"
	GenderOther     = "other"
)

// Segment values
const (
	SegmentRelationship = "relationship"
	SegmentFun          = "fun"
)

// Decision is a recorded swipe outcome
type Decision string

const (
	DecisionLike      Decision = "like"
	DecisionPass      Decision = "pass"
	DecisionSuperLike Decision = "super_like"
)

// Positive reports whether the decision can take part in a match
func (d Decision) Positive() bool {
	return d == DecisionLike || d == DecisionSuperLike
}

// MessageType values
const (
	MessageText  = "text"
	MessageImage = "image"
	MessageVideo = "video"
	MessageAudio = "audio"
)

// User represents an account
type User struct {
	ID              string     `json:"id"`
	Email           *string    `json:"email,omitempty"`
	Phone           *string    `json:"phone,omitempty"`
	FullName        string     `json:"fullName,omitempty"`
	DateOfBirth     *time.Time `json:"dateOfBirth,omitempty"`
	Gender          string     `json:"gender,omitempty"`
	IsActive        bool       `json:"isActive"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	IsPhoneVerified bool       `json:"isPhoneVerified"`
	OTPHash         *string    `json:"-"`
	OTPExpiresAt    *time.Time `json:"-"`
	PushToken       *string    `json:"-"`
	LastActiveAt    *time.Time `json:"lastActive,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// PublicUser is the subset of a user shown to other users
type PublicUser struct {
	ID           string     `json:"id"`
	FullName     string     `json:"fullName,omitempty"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	LastActiveAt *time.Time `json:"lastActive,omitempty"`
}

// Public strips private fields
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:           u.ID,
		FullName:     u.FullName,
		DateOfBirth:  u.DateOfBirth,
		Gender:       u.Gender,
		LastActiveAt: u.LastActiveAt,
	}
}

// GeoPoint is a WGS84 position in degrees
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Profile holds the descriptive half of a user
type Profile struct {
	UserID            string    `json:"userId"`
	Bio               string    `json:"bio"`
	Occupation        string    `json:"occupation,omitempty"`
	Education         string    `json:"education,omitempty"`
	Company           string    `json:"company,omitempty"`
	School            string    `json:"school,omitempty"`
	City              string    `json:"city,omitempty"`
	State             string    `json:"state,omitempty"`
	Country           string    `json:"country,omitempty"`
	HeightCm          *int      `json:"heightCm,omitempty"`
	BodyType          string    `json:"bodyType,omitempty"`
	Ethnicity         string    `json:"ethnicity,omitempty"`
	Drinking          string    `json:"drinking,omitempty"`
	Smoking           string    `json:"smoking,omitempty"`
	Religion          string    `json:"religion,omitempty"`
	PoliticalViews    string    `json:"politicalViews,omitempty"`
	LookingFor        string    `json:"lookingFor,omitempty"`
	Interests         []string  `json:"interests"`
	Segment           string    `json:"segment"`
	Location          *GeoPoint `json:"location,omitempty"`
	IsVisible         bool      `json:"isVisible"`
	ShowAge           bool      `json:"showAge"`
	ShowDistance      bool      `json:"showDistance"`
	IsComplete        bool      `json:"isComplete"`
	CompletenessScore int       `json:"completenessScore"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Photo is one image in a user's ordered gallery
type Photo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	URL       string    `json:"url"`
	ObjectKey string    `json:"-"`
	Position  int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
}

// Swipe is an immutable decision by Actor about Target
type Swipe struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"userId"`
	TargetID  string    `json:"targetUserId"`
	Decision  Decision  `json:"swipeType"`
	CreatedAt time.Time `json:"createdAt"`
}

// Match links two users. User1ID always sorts before User2ID.
type Match struct {
	ID        string    `json:"id"`
	User1ID   string    `json:"user1Id"`
	User2ID   string    `json:"user2Id"`
	CreatedAt time.Time `json:"matchedAt"`
}

// Has reports whether userID participates in the match
func (m *Match) Has(userID string) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// Other returns the participant that is not userID
func (m *Match) Other(userID string) string {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// Message is one chat line inside a match
type Message struct {
	ID          string     `json:"id"`
	Seq         int64      `json:"-"`
	MatchID     string     `json:"matchId"`
	SenderID    string     `json:"senderId"`
	ReceiverID  string     `json:"receiverId"`
	Content     string     `json:"content"`
	MessageType string     `json:"messageType"`
	IsRead      bool       `json:"isRead"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// RefreshToken is a stored, revocable refresh credential
type RefreshToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Candidate is a user offered for swiping
type Candidate struct {
	User       *PublicUser `json:"user"`
	Profile    *Profile    `json:"profile"`
	DistanceKm *float64    `json:"distanceKm,omitempty"`
}

// MatchSummary is a match as seen by one participant
type MatchSummary struct {
	Match       *Match      `json:"match"`
	OtherUser   *PublicUser `json:"otherUser"`
	Profile     *Profile    `json:"profile,omitempty"`
	Photo       *Photo      `json:"photo,omitempty"`
	Photos      []*Photo    `json:"photos,omitempty"`
	LastMessage *Message    `json:"lastMessage,omitempty"`
}

// Pagination describes a page of results
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination fills in the page count
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
