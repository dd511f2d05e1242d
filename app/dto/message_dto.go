package dto

// CreateMessageRequest represents the request to create a message template
type CreateMessageRequest struct {
	OwnerID uint   `json:"-"`
	Subject string `json:"subject" validate:"required,max=250"`
	Body    string `json:"body" validate:"required"`
}

// CreateMessageResponse represents the response to create a message template
type CreateMessageResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	CreatedAt string `json:"created_at"`
}

// UpdateMessageRequest represents the request to edit a message template
type UpdateMessageRequest struct {
	UUID     string  `json:"-"`
	CallerID uint    `json:"-"`
	Subject  *string `json:"subject,omitempty" validate:"omitempty,max=250"`
	Body     *string `json:"body,omitempty"`
}

// MessageResponse represents one message template in responses
type MessageResponse struct {
	UUID      string `json:"uuid"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	OwnerID   uint   `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

// ListMessagesResponse represents the message-template listing
type ListMessagesResponse struct {
	Message  string            `json:"message"`
	Messages []MessageResponse `json:"messages"`
}
