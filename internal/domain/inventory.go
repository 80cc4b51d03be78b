package domain

import "time"

type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    int64  `json:"price"`
	ImageURL string `json:"image_url,omitempty"`
	Active   bool   `json:"active"`
}

type StockLevel struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Available int    `json:"available"`
}

type RestockSubscription struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"product_id"`
	Size       string     `json:"size"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
}

// Cart is written by the storefront; this system only reads it to send
// abandonment reminders.
type Cart struct {
	ID             string
	Email          string
	ItemCount      int
	UpdatedAt      time.Time
	ConvertedAt    *time.Time
	ReminderSentAt *time.Time
}
