package models

import "time"

type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        int64     `json:"price"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	CategorySlug string    `json:"categorySlug"`
	Available    bool      `json:"available"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Category struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
