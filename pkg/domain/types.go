package domain

import "time"

// SKUStatus is the review state of a catalog record. DELETED is logically
// terminal for user-facing listings; no other transition is constrained.
type SKUStatus string

const (
	StatusDraft         SKUStatus = "DRAFT"
	StatusPendingReview SKUStatus = "PENDING_REVIEW"
	StatusApproved      SKUStatus = "APPROVED"
	StatusRejected      SKUStatus = "REJECTED"
	StatusDeleted       SKUStatus = "DELETED"
)

// ParseSKUStatus maps a raw string onto the closed status set.
func ParseSKUStatus(s string) (SKUStatus, bool) {
	switch SKUStatus(s) {
	case StatusDraft, StatusPendingReview, StatusApproved, StatusRejected, StatusDeleted:
		return SKUStatus(s), true
	default:
		return "", false
	}
}

// SKU is one drug product record. NDC is the primary identifier and is
// immutable once assigned. A zero-valued field on a partial snapshot means
// "absent", not "empty".
type SKU struct {
	NDC          string    `json:"ndc"`
	Name         string    `json:"name"`
	Manufacturer string    `json:"manufacturer"`
	DosageForm   string    `json:"dosage_form"`
	Strength     string    `json:"strength"`
	PackageSize  string    `json:"package_size"`
	GTIN         string    `json:"gtin,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	Status       SKUStatus `json:"status"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	LastModified time.Time `json:"last_modified,omitzero"`
	CreatedBy    string    `json:"created_by,omitempty"`
	ReviewedBy   string    `json:"reviewed_by,omitempty"`
}

// SKUPatch carries partial-update semantics: nil means "leave unchanged".
// NDC is deliberately absent; codes never change.
type SKUPatch struct {
	Name         *string    `json:"name,omitempty"`
	Manufacturer *string    `json:"manufacturer,omitempty"`
	DosageForm   *string    `json:"dosage_form,omitempty"`
	Strength     *string    `json:"strength,omitempty"`
	PackageSize  *string    `json:"package_size,omitempty"`
	GTIN         *string    `json:"gtin,omitempty"`
	ImageURL     *string    `json:"image_url,omitempty"`
	Status       *SKUStatus `json:"status,omitempty"`
	ReviewedBy   *string    `json:"reviewed_by,omitempty"`
}

// Apply returns a copy of s with the non-nil patch fields written over it.
func (p SKUPatch) Apply(s SKU) SKU {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Manufacturer != nil {
		s.Manufacturer = *p.Manufacturer
	}
	if p.DosageForm != nil {
		s.DosageForm = *p.DosageForm
	}
	if p.Strength != nil {
		s.Strength = *p.Strength
	}
	if p.PackageSize != nil {
		s.PackageSize = *p.PackageSize
	}
	if p.GTIN != nil {
		s.GTIN = *p.GTIN
	}
	if p.ImageURL != nil {
		s.ImageURL = *p.ImageURL
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.ReviewedBy != nil {
		s.ReviewedBy = *p.ReviewedBy
	}
	return s
}

// ChangeType classifies one field-level difference. The type is derived from
// value presence, never asserted by callers.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// FieldChange is one (field, old, new, type) difference. Nil values mean the
// side was absent.
type FieldChange struct {
	Field      string     `json:"field"`
	OldValue   *string    `json:"oldValue"`
	NewValue   *string    `json:"newValue"`
	ChangeType ChangeType `json:"changeType"`
}

// ChangeSource tags where a proposed mutation came from.
type ChangeSource string

const (
	SourceDataset     ChangeSource = "dataset"
	SourceOCR         ChangeSource = "ocr"
	SourceChatContext ChangeSource = "chat_context"
	// SourceAPI marks mutations made directly through the catalog API rather
	// than through a reconciliation channel.
	SourceAPI ChangeSource = "api"
)

// NotificationType is the user-facing category of a ChangeNotification.
type NotificationType string

const (
	NotificationDataset NotificationType = "dataset_change"
	NotificationOCR     NotificationType = "ocr_change"
	NotificationContext NotificationType = "context_change"
)

// ChangeNotification is a proposed, unapplied catalog mutation awaiting
// explicit approval or rejection. A notification always carries at least one
// FieldChange; empty diffs are suppressed before one is created.
type ChangeNotification struct {
	ID             string           `json:"id"`
	Type           NotificationType `json:"type"`
	SKUID          string           `json:"skuId"`
	OldData        SKU              `json:"oldData"`
	NewData        SKU              `json:"newData"`
	Changes        []FieldChange    `json:"changes"`
	Source         ChangeSource     `json:"source"`
	Timestamp      time.Time        `json:"timestamp"`
	Confidence     *float64         `json:"confidence,omitempty"`
	Message        string           `json:"message"`
	ActionRequired bool             `json:"actionRequired"`
}

// ChatMessage is one turn in a session dialogue. SKURefs holds codes found in
// Text by pattern match; it is filled by the context store, not by callers.
type ChatMessage struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	User          bool      `json:"user"`
	Text          string    `json:"text"`
	ExtractedData *SKU      `json:"extractedData,omitempty"`
	SKURefs       []string  `json:"skuReferences,omitempty"`
}

// SessionContext is the durable record of one conversational session.
// MentionedNDCs is append-only within a session; created/modified sets
// deduplicate by code.
type SessionContext struct {
	SessionID     string        `json:"sessionId"`
	Messages      []ChatMessage `json:"messages"`
	MentionedNDCs []string      `json:"mentionedSkus"`
	CreatedSKUs   []SKU         `json:"createdSkus"`
	ModifiedSKUs  []SKU         `json:"modifiedSkus"`
}

// ContextStats summarizes a session for the stats endpoint.
type ContextStats struct {
	SessionID            string `json:"sessionId"`
	MessageCount         int    `json:"messageCount"`
	MentionedCount       int    `json:"mentionedSkusCount"`
	CreatedCount         int    `json:"createdSkusCount"`
	ModifiedCount        int    `json:"modifiedSkusCount"`
	PendingNotifications int    `json:"pendingNotifications"`
}

// DuplicateGroup is a set of records sharing a product name; the first
// record's NDC labels the group.
type DuplicateGroup struct {
	NDC     string `json:"ndc"`
	Name    string `json:"name"`
	Records []SKU  `json:"records"`
}

// Revision is one applied catalog mutation, recorded for history. Snapshot
// is the record as it looked after the mutation was applied.
type Revision struct {
	ID        string        `json:"id"`
	NDC       string        `json:"ndc"`
	Source    ChangeSource  `json:"source"`
	Actor     string        `json:"actor,omitempty"`
	Changes   []FieldChange `json:"changes"`
	Snapshot  SKU           `json:"snapshot"`
	CreatedAt time.Time     `json:"created_at"`
}

// OCRResult is what the external OCR engine returns for one image.
type OCRResult struct {
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	SKUData    SKU     `json:"sku_data"`
	Text       string  `json:"extracted_text,omitempty"`
}
