package models

// FetchedPage is the raw HTTP fetch result for an audit target
type FetchedPage struct {
	URL        string // URL after redirects
	HTML       string
	StatusCode int
}
