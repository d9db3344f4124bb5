package domain

// Profile is a single result record produced by a completed scraping task.
type Profile struct {
	Username string `json:"username"`
	URL      string `json:"url"`
}
