package book

import (
	"errors"
	"math"
	"time"
)

type Rating struct {
	UserID string `json:"userId" binding:"required"`
	Grade  int    `json:"grade" binding:"min=0,max=5"`
}

type Book struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Genre         string    `json:"genre"`
	Year          int       `json:"year"`
	ImageURL      string    `json:"imageUrl"`
	Ratings       []Rating  `json:"ratings"`
	AverageRating int       `json:"averageRating"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

var (
	ErrNotFound     = errors.New("book not found")
	ErrAlreadyRated = errors.New("user already rated this book")
)

// CreateBookRequest is the JSON carried in the multipart "book" field.
// The creator id comes from the authenticated identity, never the payload.
type CreateBookRequest struct {
	Title   string   `json:"title" binding:"required"`
	Author  string   `json:"author" binding:"required"`
	Genre   string   `json:"genre" binding:"required"`
	Year    int      `json:"year" binding:"required"`
	Ratings []Rating `json:"ratings" binding:"omitempty,dive"`
}

// UpdateBookRequest keeps the stored value for any zero field. Callers that
// want to keep a field may simply omit it.
type UpdateBookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
	Year   int    `json:"year"`
}

type RateRequest struct {
	UserID string `json:"userId" binding:"required"`
	Rating *int   `json:"rating" binding:"required"`
}

// HasRatingFrom reports whether the user already rated the book.
func (b *Book) HasRatingFrom(userID string) bool {
	for _, r := range b.Ratings {
		if r.UserID == userID {
			return true
		}
	}

	return false
}

// AverageOf returns the rounded mean of the given grades, 0 when empty.
func AverageOf(ratings []Rating) int {
	if len(ratings) == 0 {
		return 0
	}

	sum := 0

	for _, r := range ratings {
		sum += r.Grade
	}

	return int(math.Round(float64(sum) / float64(len(ratings))))
}
