package dto

// PushPayload is the prepared notification handed to the external push relay.
type PushPayload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	EmailID string `json:"emailId"`
	Link    string `json:"link"`
}

// PushDelivery pairs a payload with the subscription record the relay needs
// to deliver it.
type PushDelivery struct {
	Subscription PushSubscriptionRecord `json:"subscription"`
	Payload      PushPayload            `json:"payload"`
}

type PushSubscriptionRecord struct {
	Endpoint string `json:"endpoint"`
	Auth     string `json:"auth"`
	P256dh   string `json:"p256dh"`
}
