package analysis

import (
	"strings"
	"time"
)

// AnalysisID identifier assigned by storage
type AnalysisID int64

// Category partitions recommendation items
type Category string

const (
	CategoryProduct Category = "Product"
	CategoryRemedy  Category = "Remedy"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == CategoryProduct || c == CategoryRemedy
}

// ParseCategory accepts the canonical names case-insensitively, plus the plural
// forms used in URLs ("products", "remedies").
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "product", "products":
		return CategoryProduct, true
	case "remedy", "remedies":
		return CategoryRemedy, true
	}
	return "", false
}

// AdminStatus enum of the recommendations table
type AdminStatus string

const (
	AdminStatusPending  AdminStatus = "Pending"
	AdminStatusVerified AdminStatus = "Verified"
	AdminStatusFlagged  AdminStatus = "Flagged"
)

// Record is one submitted skin scan and its AI classification.
type Record struct {
	ID              AnalysisID `json:"analysis_id" db:"analysis_id"`
	UserID          int64      `json:"user_id" db:"user_id"`
	ScanType        string     `json:"scan_type" db:"scan_type"`
	DetectedIssue   string     `json:"detected_issue" db:"detected_issue"`
	ConfidenceScore float64    `json:"confidence_score" db:"confidence_score"`
	ImagePath       string     `json:"image_path" db:"image_path"`
	AnalysisDate    time.Time  `json:"analysis_date" db:"analysis_date"`
	IsReviewed      bool       `json:"is_reviewed" db:"is_reviewed"`
}

// RecommendationItem is one piece of advice as edited and committed.
type RecommendationItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        Category `json:"type"`
	Link        string   `json:"link,omitempty"`
}

// StoredRecommendation is a committed item as persisted in the recommendations table.
type StoredRecommendation struct {
	ID           int64       `json:"rec_id" db:"rec_id"`
	AnalysisID   AnalysisID  `json:"analysis_id" db:"analysis_id"`
	Type         Category    `json:"type" db:"type"`
	ModelVersion string      `json:"model_version" db:"model_version"`
	Title        string      `json:"title" db:"title"`
	Description  string      `json:"description" db:"description"`
	Link         string      `json:"link" db:"link"`
	AdminStatus  AdminStatus `json:"admin_status" db:"admin_status"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// Item drops the storage columns.
func (s StoredRecommendation) Item() RecommendationItem {
	return RecommendationItem{Title: s.Title, Description: s.Description, Type: s.Type, Link: s.Link}
}

// ReviewFilter selects records by review status
type ReviewFilter string

const (
	FilterAll      ReviewFilter = ""
	FilterPending  ReviewFilter = "pending"
	FilterReviewed ReviewFilter = "reviewed"
)

// Stats value object for the dashboard cards
type Stats struct {
	TotalUsers     int `json:"total_users"`
	TotalScans     int `json:"total_scans"`
	PendingReviews int `json:"pending_reviews"`
	TodaysScans    int `json:"todays_scans"`
}

// Bucket is one slice of a grouped count.
type Bucket struct {
	Name  string `json:"name" db:"name"`
	Count int    `json:"count" db:"count"`
}
