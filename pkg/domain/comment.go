package domain

// CommentStub is the metadata extracted from one listing-page row, before
// the comment body has been fetched.
type CommentStub struct {
	Page      int
	URL       string
	Title     string
	Commenter string
	Date      string
}

// Comment is a fully fetched public comment. Struct order is the JSONL
// record layout.
type Comment struct {
	URL         string `json:"url"`
	Page        int    `json:"page"`
	Title       string `json:"title"`
	Commenter   string `json:"commenter"`
	CommentText string `json:"comment_text"`
	CommentHTML string `json:"comment_html"`
	Date        string `json:"date"`
}
