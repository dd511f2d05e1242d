package dto

// CreateMailingRequest represents the request to create a mailing. When
// RecipientUUIDs is omitted the owner's active recipients are snapshotted
// as the audience.
type CreateMailingRequest struct {
	OwnerID        uint     `json:"-"`
	Name           *string  `json:"name,omitempty" validate:"omitempty,max=150"`
	MessageUUID    *string  `json:"message_uuid,omitempty" validate:"omitempty,uuid"`
	RecipientUUIDs []string `json:"recipient_uuids,omitempty" validate:"omitempty,dive,uuid"`
}

// CreateMailingResponse represents the response to create a mailing
type CreateMailingResponse struct {
	Message        string `json:"message"`
	UUID           string `json:"uuid"`
	Status         string `json:"status"`
	RecipientCount int    `json:"recipient_count"`
	CreatedAt      string `json:"created_at"`
}

// UpdateMailingRequest represents the request to edit a mailing
type UpdateMailingRequest struct {
	UUID        string  `json:"-"`
	CallerID    uint    `json:"-"`
	Name        *string `json:"name,omitempty" validate:"omitempty,max=150"`
	MessageUUID *string `json:"message_uuid,omitempty" validate:"omitempty,uuid"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=created running finished"`
}

// MailingResponse represents one mailing in responses
type MailingResponse struct {
	UUID           string              `json:"uuid"`
	Name           *string             `json:"name,omitempty"`
	Status         string              `json:"status"`
	MessageUUID    *string             `json:"message_uuid,omitempty"`
	MessageSubject *string             `json:"message_subject,omitempty"`
	Recipients     []RecipientResponse `json:"recipients,omitempty"`
	OwnerID        uint                `json:"owner_id"`
	CreatedAt      string              `json:"created_at"`
}

// ListMailingsResponse represents the mailing listing
type ListMailingsResponse struct {
	Message  string            `json:"message"`
	Mailings []MailingResponse `json:"mailings"`
}

// SendMailingRequest represents the request to dispatch an existing mailing
type SendMailingRequest struct {
	UUID     string `json:"-"`
	CallerID uint   `json:"-"`
}

// CreateAndSendMailingRequest represents the single-step create-and-send
// entry point. Recipients are re-resolved from the owner's active set at
// send time regardless of the stored audience.
type CreateAndSendMailingRequest struct {
	OwnerID     uint    `json:"-"`
	Name        *string `json:"name,omitempty" validate:"omitempty,max=150"`
	MessageUUID string  `json:"message_uuid" validate:"required,uuid"`
}

// SendMailingResponse reports the dispatch outcome. Transport failures are
// absorbed into the attempt, so this response is returned either way.
type SendMailingResponse struct {
	Message        string          `json:"message"`
	MailingUUID    string          `json:"mailing_uuid"`
	RecipientCount int             `json:"recipient_count"`
	Attempt        AttemptResponse `json:"attempt"`
}

// AttemptResponse represents the attempt ledger row of one mailing
type AttemptResponse struct {
	UUID              string `json:"uuid"`
	MailingUUID       string `json:"mailing_uuid,omitempty"`
	MailingName       string `json:"mailing_name,omitempty"`
	Status            string `json:"status"`
	TransportResponse string `json:"transport_response"`
	OkCount           uint   `json:"ok_count"`
	ErrorCount        uint   `json:"error_count"`
	MessagesSentCount uint   `json:"messages_sent_count"`
	AttemptedAt       string `json:"attempted_at"`
}

// ListAttemptsResponse represents the attempt ledger listing
type ListAttemptsResponse struct {
	Message  string            `json:"message"`
	Attempts []AttemptResponse `json:"attempts"`
}
