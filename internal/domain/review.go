package domain

import (
	"errors"
	"math"
	"time"
)

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MinCommentLength = 10
	MaxCommentLength = 1000
	MaxTitleLength   = 100
)

var (
	// ErrDuplicateReview is returned when a user reviews the same product twice.
	ErrDuplicateReview = errors.New("user has already reviewed this product")
	// ErrInvalidTransition is returned for a moderation move the policy forbids.
	ErrInvalidTransition = errors.New("invalid review status transition")
)

// Review is a user's rating and comment on a product.
type Review struct {
	ID         string       `json:"id"`
	ProductID  string       `json:"productId"`
	UserID     string       `json:"userId"`
	Rating     int          `json:"rating"`
	Title      *string      `json:"title,omitempty"`
	Comment    string       `json:"comment"`
	Status     ReviewStatus `json:"status"`
	Verified   bool         `json:"verified"`
	Helpful    int          `json:"helpful"`
	AdminNotes *string      `json:"adminNotes,omitempty"`
	ReviewedBy *string      `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time   `json:"reviewedAt,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// IsApproved reports whether the review counts toward the product rating.
func (r *Review) IsApproved() bool { return r.Status == ReviewStatusApproved }

// Moderate moves the review to status on behalf of moderator, stamping who
// did it and when. Notes replace previous notes only when non-nil.
func (r *Review) Moderate(status ReviewStatus, moderator string, notes *string, now time.Time) error {
	if !CanTransition(r.Status, status) {
		return ErrInvalidTransition
	}
	r.Status = status
	r.ReviewedBy = &moderator
	r.ReviewedAt = &now
	if notes != nil {
		r.AdminNotes = notes
	}
	r.UpdatedAt = now
	return nil
}

// ParseReviewStatus validates s as a review status.
func ParseReviewStatus(s string) (ReviewStatus, bool) {
	switch st := ReviewStatus(s); st {
	case ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected:
		return st, true
	}
	return "", false
}

// CanTransition reports whether an admin may move a review from one status to
// another. Approved and rejected reviews may be re-opened to pending, and
// setting the current status again is allowed so moderators can amend notes.
func CanTransition(from, to ReviewStatus) bool {
	if _, ok := ParseReviewStatus(string(from)); !ok {
		return false
	}
	_, ok := ParseReviewStatus(string(to))
	return ok
}

// RatingSummary is the rating aggregate cached on a product.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// RoundRating rounds to one decimal place, halves away from zero.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// NewRatingSummary derives the summary from the sum and count of approved
// ratings. No approved ratings yields exactly (0, 0).
func NewRatingSummary(sum, count int) RatingSummary {
	if count <= 0 {
		return RatingSummary{}
	}
	return RatingSummary{
		Average: RoundRating(float64(sum) / float64(count)),
		Count:   count,
	}
}

// ReviewStats is the statistics view of a product's approved reviews.
type ReviewStats struct {
	RatingSummary
	// Distribution maps star value ("1".."5") to the number of approved
	// reviews with that rating. All five keys are always present.
	Distribution map[string]int `json:"distribution"`
}

// NewReviewStats builds stats from per-star counts, where counts[i] holds the
// number of approved reviews rated i+1.
func NewReviewStats(counts [MaxRating]int) ReviewStats {
	dist := make(map[string]int, MaxRating)
	sum, n := 0, 0
	for i, c := range counts {
		star := i + 1
		dist[string(rune('0'+star))] = c
		sum += star * c
		n += c
	}
	return ReviewStats{RatingSummary: NewRatingSummary(sum, n), Distribution: dist}
}

// ReviewStatsFromRatings builds stats from individual ratings. Ratings outside
// 1..5 are ignored.
func ReviewStatsFromRatings(ratings []int) ReviewStats {
	var counts [MaxRating]int
	for _, r := range ratings {
		if r >= MinRating && r <= MaxRating {
			counts[r-1]++
		}
	}
	return NewReviewStats(counts)
}

// ReviewFilter selects reviews for listing.
type ReviewFilter struct {
	ProductID *string
	UserID    *string
	Status    *ReviewStatus
	Page      int
	Limit     int
}
