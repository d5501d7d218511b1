package product

import "time"

// Type distinguishes shipped goods from digital deliveries.
type Type int

const (
	TypePhysical Type = 1
	TypeDigital  Type = 2
)

func (t Type) String() string {
	switch t {
	case TypePhysical:
		return "physical"
	case TypeDigital:
		return "digital"
	}
	return "unknown"
}

const (
	StatusActive  = 1
	StatusRemoved = 2
)

// MaxDescription is the longest description the API accepts.
const MaxDescription = 1000

// Product is an item a seller can offer in a transaction.
type Product struct {
	ID          string    `json:"product_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Status      int       `json:"status"`
	Type        Type      `json:"type"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	ImageIDs    []string  `json:"image_id"`
	VideoID     string    `json:"video_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
