// Package models defines the value types shared by the upload coordinator,
// its collaborators and the read side.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/common"
)

// Category is the image category an upload belongs to.
type Category string

const (
	CategoryAvatar       Category = "avatar"
	CategoryGallery      Category = "gallery"
	CategoryVerification Category = "verification"
)

// Categories lists every valid Category.
var Categories = []Category{CategoryAvatar, CategoryGallery, CategoryVerification}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAvatar, CategoryGallery, CategoryVerification:
		return true
	}
	return false
}

// ParseCategory converts s into a Category, rejecting unknown values with
// common.ErrInvalidArgument.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", common.ErrInvalidArgument, s)
	}
	return c, nil
}

// StorageDescriptor describes an object held by the object store.
type StorageDescriptor struct {
	RemoteID string `json:"remote_id"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	Bytes    int64  `json:"bytes"`
}

// RecordDescriptor is an image metadata row as persisted by the record store.
type RecordDescriptor struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Category Category `json:"category"`
	StorageDescriptor
	CreatedAt time.Time `json:"created_at"`
}

// UserStats is the per-user aggregate kept next to the image rows.
type UserStats struct {
	UserID     string    `json:"user_id"`
	ImageCount int64     `json:"image_count"`
	TotalBytes int64     `json:"total_bytes"`
	UpdatedAt  time.Time `json:"updated_at"`
}
