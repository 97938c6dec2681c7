package model

// NewIssue is the payload for creating a tracker issue.
type NewIssue struct {
	Title  string
	Body   string
	Labels []string
}

// Issue is a created tracker issue, reduced to the fields the bridge needs.
type Issue struct {
	Number  int
	Repo    string
	Title   string
	HTMLURL string
}
