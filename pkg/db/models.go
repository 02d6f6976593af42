package db

import "time"

// Page is a document that was annotated.
type Page struct {
	ID          int64
	URL         string
	Title       string
	Byline      string
	SiteName    string
	AnnotatedAt time.Time
}

// Stats summarizes the local word cache.
type Stats struct {
	Words      int
	Acquainted int
	Pages      int
}
