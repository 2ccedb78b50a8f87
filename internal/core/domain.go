package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	Food      Category = "food"
	Health    Category = "health"
	Housing   Category = "housing"
	Sports    Category = "sports"
	Education Category = "education"
)

// Categories lists the closed category set in report order.
var Categories = []Category{Food, Health, Housing, Sports, Education}

type (
	Category string

	// Cost is a single dated expense owned by a user.
	Cost struct {
		Description string    `json:"description"`
		Category    Category  `json:"category"`
		UserID      int64     `json:"userid"`
		Sum         float64   `json:"sum"`
		CreatedAt   time.Time `json:"created_at"`
	}

	User struct {
		ID        int64     `json:"id"`
		FirstName string    `json:"first_name"`
		LastName  string    `json:"last_name"`
		Birthday  time.Time `json:"birthday"`
	}

	// UserSummary is a user enriched with the sum of all of their costs.
	UserSummary struct {
		FirstName string  `json:"first_name"`
		LastName  string  `json:"last_name"`
		ID        int64   `json:"id"`
		Total     float64 `json:"total"`
	}

	LogEntry struct {
		ID        string    `json:"_id,omitempty"`
		Level     string    `json:"level"`
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
	}

	TeamMember struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
)

const maxDescriptionLength = 200

// IsValid reports whether c belongs to the closed category set.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, s)
	}
	return c, nil
}

func (c Cost) Validate() error {
	if strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidRequest)
	}
	if len(c.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidRequest, maxDescriptionLength)
	}
	if !c.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, c.Category)
	}
	if c.UserID <= 0 {
		return fmt.Errorf("%w: userid must be a positive integer", ErrInvalidRequest)
	}
	if math.IsNaN(c.Sum) || math.IsInf(c.Sum, 0) {
		return fmt.Errorf("%w: sum must be a finite number", ErrInvalidRequest)
	}
	if c.Sum < 0 {
		return fmt.Errorf("%w: sum cannot be negative", ErrInvalidRequest)
	}
	return nil
}

func (u User) Validate() error {
	if u.ID <= 0 {
		return fmt.Errorf("%w: id must be a positive integer", ErrInvalidRequest)
	}
	if strings.TrimSpace(u.FirstName) == "" {
		return fmt.Errorf("%w: first_name is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(u.LastName) == "" {
		return fmt.Errorf("%w: last_name is required", ErrInvalidRequest)
	}
	if u.Birthday.IsZero() {
		return fmt.Errorf("%w: birthday is required", ErrInvalidRequest)
	}
	return nil
}

// ParseTeam parses "First Last;First Last" into team members. Entries
// without a last name are kept with an empty LastName.
func ParseTeam(s string) []TeamMember {
	var team []TeamMember
	for _, entry := range strings.Split(s, ";") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		team = append(team, TeamMember{
			FirstName: fields[0],
			LastName:  strings.Join(fields[1:], " "),
		})
	}
	return team
}
