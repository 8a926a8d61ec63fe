package entity

// Member is the slice of a registered user the negotiation core needs.
type Member struct {
	ID          int64  `json:"id" firestore:"id"`
	ExternalID  string `json:"external_id,omitempty" firestore:"externalId"`
	DisplayName string `json:"display_name" firestore:"displayName"`
}

type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "ACTIVE"
	ListingStatusReserved ListingStatus = "RESERVED"
	ListingStatusSold     ListingStatus = "SOLD"
)

type Listing struct {
	ID       int64         `json:"id" firestore:"id"`
	SellerID int64         `json:"seller_id" firestore:"sellerId"`
	Title    string        `json:"title" firestore:"title"`
	Status   ListingStatus `json:"status" firestore:"status"`
}
