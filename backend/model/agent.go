package model

// Agent is a referral partner allowed to hand out form links.
type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
