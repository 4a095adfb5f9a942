package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Params is a jsonb map of template parameter name to value.
type Params map[string]string

// Value implements the driver.Valuer interface for Params
func (p Params) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for Params
func (p *Params) Scan(value interface{}) error {
	if value == nil {
		*p = make(Params)
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("incompatible type for Params")
	}

	result := make(Params)
	if err := json.Unmarshal(data, &result); err != nil {
		return err
	}
	*p = result
	return nil
}

// StringArray is a jsonb array of strings.
type StringArray []string

// Value implements the driver.Valuer interface for StringArray
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for StringArray
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("incompatible type for StringArray")
	}

	return json.Unmarshal(data, a)
}

// PartnerTokenRecord is a persisted, encrypted copy of the account-level
// partner bearer token. Refreshes insert new rows; history is pruned to the
// most recent 5.
type PartnerTokenRecord struct {
	ID         uuid.UUID `db:"id"`
	Ciphertext string    `db:"ciphertext"`
	IV         string    `db:"iv"`
	AuthTag    string    `db:"auth_tag"`
	IssuedAt   time.Time `db:"issued_at"`
	ExpiresAt  time.Time `db:"expires_at"`
	CreatedAt  time.Time `db:"created_at"`
}

// Agent is the tenant entity a gateway app is provisioned for.
type Agent struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Lead is a message recipient belonging to an agent.
type Lead struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AgentID   uuid.UUID `db:"agent_id" json:"agent_id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TenantApp is the local record of one tenant's gateway app.
type TenantApp struct {
	ID                       uuid.UUID `db:"id" json:"id"`
	AgentID                  uuid.UUID `db:"agent_id" json:"agent_id"`
	AppID                    string    `db:"app_id" json:"app_id"`
	Name                     string    `db:"name" json:"name"`
	PhoneNumber              *string   `db:"phone_number" json:"phone_number,omitempty"`
	TemplateMessagingEnabled bool      `db:"template_messaging_enabled" json:"template_messaging_enabled"`
	LiveStatus               bool      `db:"live_status" json:"live_status"`
	HealthyStatus            bool      `db:"healthy_status" json:"healthy_status"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time `db:"updated_at" json:"updated_at"`
}

// MessageTemplate is a local template record. Rows are never deleted; the
// status history is the audit trail.
type MessageTemplate struct {
	ID                uuid.UUID   `db:"id" json:"id"`
	AgentID           uuid.UUID   `db:"agent_id" json:"agent_id"`
	Name              string      `db:"name" json:"name"`
	Category          string      `db:"category" json:"category"`
	Content           string      `db:"content" json:"content"`
	Params            StringArray `db:"params" json:"params"`
	LanguageCode      string      `db:"language_code" json:"language_code"`
	Status            string      `db:"status" json:"status"`
	GatewayTemplateID *string     `db:"gateway_template_id" json:"gateway_template_id,omitempty"`
	SubmittedAt       *time.Time  `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt        *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt        *time.Time  `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectionReason   *string     `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
}

// Campaign is a bulk-send job. The orchestrator mutates it incrementally,
// one recipient at a time.
type Campaign struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AgentID         uuid.UUID  `db:"agent_id" json:"agent_id"`
	TemplateID      uuid.UUID  `db:"template_id" json:"template_id"`
	Status          string     `db:"status" json:"status"`
	MessagesSent    int        `db:"messages_sent" json:"messages_sent"`
	MessagesFailed  int        `db:"messages_failed" json:"messages_failed"`
	TotalRecipients int        `db:"total_recipients" json:"total_recipients"`
	ErrorDetails    *string    `db:"error_details" json:"error_details,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// CampaignRecipient is one durable row of a campaign's recipient list,
// ordered by position so a paused run resumes deterministically.
type CampaignRecipient struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CampaignID uuid.UUID `db:"campaign_id" json:"campaign_id"`
	LeadID     uuid.UUID `db:"lead_id" json:"lead_id"`
	Phone      string    `db:"phone" json:"phone"`
	Params     Params    `db:"params" json:"params"`
	Position   int       `db:"position" json:"position"`
}

// MessageLog is an append-only record of one dispatch attempt.
type MessageLog struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	LeadID            *uuid.UUID `db:"lead_id" json:"lead_id,omitempty"`
	AgentID           uuid.UUID  `db:"agent_id" json:"agent_id"`
	ExternalMessageID *string    `db:"external_message_id" json:"external_message_id,omitempty"`
	TemplateID        *uuid.UUID `db:"template_id" json:"template_id,omitempty"`
	Params            Params     `db:"params" json:"params"`
	PhoneNumber       string     `db:"phone_number" json:"phone_number"`
	Status            string     `db:"status" json:"status"`
	ErrorMessage      *string    `db:"error_message" json:"error_message,omitempty"`
	CampaignID        *uuid.UUID `db:"campaign_id" json:"campaign_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}
