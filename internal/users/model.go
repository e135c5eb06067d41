package users

import "time"

// User is the anonymous identity created for each submission. There is no
// authentication layer; a fresh user owns each analysis.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
