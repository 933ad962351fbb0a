package items

import (
	"time"

	"github.com/google/uuid"
)

// ContentType names a kind of item
type ContentType string

const (
	ContentTypeNote ContentType = "Note"
	ContentTypeTag  ContentType = "Tag"
)

// PayloadSource records why an item value changed
type PayloadSource int

const (
	SourceUnknown         PayloadSource = iota
	SourceLocalRetrieved                // Initial load from the local database
	SourceLocalChanged                  // Edited on this device
	SourceRemoteRetrieved               // Pulled from a sync server
)

func (s PayloadSource) String() string {
	switch s {
	case SourceLocalRetrieved:
		return "local-retrieved"
	case SourceLocalChanged:
		return "local-changed"
	case SourceRemoteRetrieved:
		return "remote-retrieved"
	default:
		return "unknown"
	}
}

// IsRemote reports whether the change came from an external sync source
func (s PayloadSource) IsRemote() bool {
	return s == SourceRemoteRetrieved
}

// Reference is a relationship from one item to another
type Reference struct {
	UUID        string      `json:"uuid"`
	ContentType ContentType `json:"content_type"`
}

// Content is the user-visible part of an item
type Content struct {
	Title      string      `json:"title"`
	Text       string      `json:"text,omitempty"`
	References []Reference `json:"references"`
}

// Item is a note or a tag. Items are values: the data layer hands out copies
// and every change produces a new Item.
type Item struct {
	UUID        string      `json:"uuid"`
	ContentType ContentType `json:"content_type"`
	Content     Content     `json:"content"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewID returns a fresh item identity, time ordered where possible
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// New creates an unpersisted item with a fresh identity
func New(kind ContentType, content Content) *Item {
	now := time.Now().UTC()
	if content.References == nil {
		content.References = []Reference{}
	}
	return &Item{
		UUID:        NewID(),
		ContentType: kind,
		Content:     content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy of the item
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	c.Content.References = append([]Reference{}, i.Content.References...)
	return &c
}

// HasRelationshipWith reports whether i references other
func (i *Item) HasRelationshipWith(other *Item) bool {
	for _, ref := range i.Content.References {
		if ref.UUID == other.UUID {
			return true
		}
	}
	return false
}

// StreamHandler receives a batch of changed items of one content type
type StreamHandler func(batch []*Item, source PayloadSource)
