package domain

import "time"

// WatchRule is a named CEL predicate over a beneficiary.
//
// Example: `risk_score >= 80 && "Multiple IDs" in risk_factors`
type WatchRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression; must evaluate to bool.
	Expression string `json:"expression"`

	// Whether rule is active
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ProfileView records one investigative drill-down.
type ProfileView struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"sessionId"`
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	RiskScore  int        `json:"riskScore"`
	RequestID  string     `json:"requestId,omitempty"`
	ViewedAt   time.Time  `json:"viewedAt"`
}
