package dto

// CreateRecipientRequest represents the request to add a recipient
type CreateRecipientRequest struct {
	OwnerID  uint    `json:"-"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=300"`
	Comment  *string `json:"comment,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

// CreateRecipientResponse represents the response to add a recipient
type CreateRecipientResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// BulkCreateRecipientsRequest represents a delimiter-separated blob of
// addresses to import at once
type BulkCreateRecipientsRequest struct {
	OwnerID uint   `json:"-"`
	Emails  string `json:"emails" validate:"required"`
}

// BulkCreateRecipientsResponse reports which addresses were imported and
// which were dropped or already present
type BulkCreateRecipientsResponse struct {
	Message string   `json:"message"`
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// UpdateRecipientRequest represents the request to edit a recipient
type UpdateRecipientRequest struct {
	UUID     string  `json:"-"`
	CallerID uint    `json:"-"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=300"`
	Comment  *string `json:"comment,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

// RecipientResponse represents one recipient in responses
type RecipientResponse struct {
	UUID      string  `json:"uuid"`
	Email     string  `json:"email"`
	FullName  *string `json:"full_name,omitempty"`
	Comment   *string `json:"comment,omitempty"`
	Active    *bool   `json:"active"`
	OwnerID   uint    `json:"owner_id"`
	CreatedAt string  `json:"created_at"`
}

// ListRecipientsResponse represents the recipient listing
type ListRecipientsResponse struct {
	Message    string              `json:"message"`
	Recipients []RecipientResponse `json:"recipients"`
}
