package models

import "time"

// NewsArticle repräsentiert einen Nachrichtenartikel aus dem News-Feed.
// Insert-once: Duplikate (gleiche URL) werden beim Einfügen still verworfen.
type NewsArticle struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	AssetID *uint `json:"asset_id,omitempty" gorm:"index"`

	Title          string     `json:"title" gorm:"type:text"`
	Source         *string    `json:"source,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty" gorm:"index"`
	URL            string     `json:"url" gorm:"size:1024;uniqueIndex;not null"`
	Summary        *string    `json:"summary,omitempty" gorm:"type:text"`
	SentimentScore *float64   `json:"sentiment_score,omitempty"`
	SearchType     string     `json:"search_type,omitempty" gorm:"index"`
}
