package model

// Post is a scraped text post.
type Post struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Text      string  `json:"text"`
	Score     int     `json:"score"`
	URL       string  `json:"url"`
	Subreddit string  `json:"subreddit"`
	// CreatedUTC is the unix time the post was submitted.
	CreatedUTC float64  `json:"created_utc"`
	Comments   []string `json:"comments,omitempty"`
}
