package enum

type EmailProvider string

const (
	ProviderGmail EmailProvider = "gmail"
	ProviderIMAP  EmailProvider = "imap"
)

func (t EmailProvider) String() string {
	return string(t)
}

type EmailFolder string

const (
	FolderInbox    EmailFolder = "inbox"
	FolderSent     EmailFolder = "sent"
	FolderTrash    EmailFolder = "trash"
	FolderDeleting EmailFolder = "deleting"
)

func (t EmailFolder) String() string {
	return string(t)
}

type EmailTag string

const (
	TagImportant  EmailTag = "important"
	TagJunk       EmailTag = "junk"
	TagNewsletter EmailTag = "newsletter"
	TagNeutral    EmailTag = "neutral"
	TagSystem     EmailTag = "system"
)

func (t EmailTag) String() string {
	return string(t)
}

// ParseEmailTag maps a classifier label onto a known tag. Unknown labels
// fall back to neutral so a drifting model never poisons tag state.
func ParseEmailTag(s string) EmailTag {
	switch EmailTag(s) {
	case TagImportant, TagJunk, TagNewsletter, TagNeutral, TagSystem:
		return EmailTag(s)
	default:
		return TagNeutral
	}
}
