package classifier

import (
	"strings"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

// prefilterTag inspects raw headers for machine-generated mail before any
// inference call is made. Bounces and autoresponders get the system tag,
// list traffic gets newsletter; both are classified without spending an
// inference request on them.
func prefilterTag(email *models.Email) (enum.EmailTag, string, bool) {
	if matched, reason := isBounceNotification(email); matched {
		return enum.TagSystem, reason, true
	}
	if matched, reason := isAutoresponder(email); matched {
		return enum.TagSystem, reason, true
	}
	if matched, reason := isListTraffic(email); matched {
		return enum.TagNewsletter, reason, true
	}
	return "", "", false
}

func isBounceNotification(email *models.Email) (bool, string) {
	switch {
	case email.HeaderExists("X-Failed-Recipients"):
		return true, "X-FAILED-RECIPIENTS header present"
	case strings.EqualFold(email.HeaderValue("Content-Description"), "delivery report"):
		return true, "CONTENT-DESCRIPTION: DELIVERY REPORT header present"
	case hasBounceKeywords(email.HeaderValue("Return-Path")):
		return true, "RETURN-PATH contains bounce keywords"
	case hasBounceKeywords(email.FromAddress):
		return true, "FROM contains bounce keywords"
	case isBounceSubject(email.Subject):
		return true, "SUBJECT contains bounce keywords"
	default:
		return false, ""
	}
}

func isAutoresponder(email *models.Email) (bool, string) {
	autoSubmitted := email.HeaderValue("Auto-Submitted")
	switch {
	case autoSubmitted != "" && !strings.EqualFold(autoSubmitted, "no"):
		return true, "AUTO-SUBMITTED header present"
	case email.HeaderExists("X-Autoreply"):
		return true, "X-AUTOREPLY header present"
	case email.HeaderExists("X-Autorespond"):
		return true, "X-AUTORESPOND header present"
	case strings.EqualFold(email.HeaderValue("Precedence"), "auto_reply"):
		return true, "PRECEDENCE: AUTO_REPLY header present"
	default:
		return false, ""
	}
}

func isListTraffic(email *models.Email) (bool, string) {
	precedence := email.HeaderValue("Precedence")
	switch {
	case email.HeaderExists("List-Unsubscribe"):
		return true, "LIST-UNSUBSCRIBE header present"
	case email.HeaderExists("List-Id"):
		return true, "LIST-ID header present"
	case strings.EqualFold(precedence, "bulk") || strings.EqualFold(precedence, "list"):
		return true, "PRECEDENCE: BULK header present"
	default:
		return false, ""
	}
}

func hasBounceKeywords(str string) bool {
	lower := strings.ToLower(str)
	return strings.Contains(lower, "mailer-daemon") || strings.Contains(lower, "postmaster")
}

func isBounceSubject(subject string) bool {
	subject = strings.ToLower(subject)
	keywords := []string{
		"mail delivery failure",
		"undelivered mail returned to sender",
		"delivery status notification",
		"undeliverable",
		"undelivered",
		"delivery failure",
		"failure notice",
		"returned mail",
		"returned to sender",
	}
	for _, phrase := range keywords {
		if strings.Contains(subject, phrase) {
			return true
		}
	}
	return false
}
