package domain

type Shop struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}
