package dto

// EmptyTrashResult reports what the empty-trash request did locally. The
// remote side catches up when the queue drains; callers never wait on it.
type EmptyTrashResult struct {
	Deleted int `json:"deleted"`
	Queued  int `json:"queued"`
}

// EmailIngested is published on the events exchange for every newly
// ingested message so external consumers can react.
type EmailIngested struct {
	EmailID     string   `json:"emailId"`
	AccountID   string   `json:"accountId"`
	Provider    string   `json:"provider"`
	Folder      string   `json:"folder"`
	Subject     string   `json:"subject"`
	FromAddress string   `json:"fromAddress"`
	Tags        []string `json:"tags"`
}
