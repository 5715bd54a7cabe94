package model

import (
	"time"
)

// FieldName identifies a scalar answer on the form.
type FieldName string

const (
	FieldFinishedWork            FieldName = "finishedWork"
	FieldEndDate                 FieldName = "endDate"
	FieldClosingPapers           FieldName = "closingPapers"
	FieldFinancialIssues         FieldName = "financialIssues"
	FieldDisability              FieldName = "disability"
	FieldDisabilityClaim         FieldName = "disabilityClaim"
	FieldCurrentEmploymentStatus FieldName = "currentEmploymentStatus"
	FieldSalary                  FieldName = "salary"
	FieldEmployerName            FieldName = "employerName"
	FieldTransparentCall         FieldName = "transparentCall"
	FieldFullName                FieldName = "fullName"
	FieldPhone                   FieldName = "phone"
	FieldIDNumber                FieldName = "idNumber"
	FieldCity                    FieldName = "city"
)

// Fields lists every scalar answer in form order.
var Fields = []FieldName{
	FieldFinishedWork,
	FieldEndDate,
	FieldClosingPapers,
	FieldFinancialIssues,
	FieldDisability,
	FieldDisabilityClaim,
	FieldCurrentEmploymentStatus,
	FieldSalary,
	FieldEmployerName,
	FieldTransparentCall,
	FieldFullName,
	FieldPhone,
	FieldIDNumber,
	FieldCity,
}

// IsField reports whether name is a known scalar field.
func IsField(name string) bool {
	for _, f := range Fields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// SlotName identifies one of the four file uploads.
type SlotName string

const (
	SlotIDFront      SlotName = "idFront"
	SlotIDBack       SlotName = "idBack"
	SlotIDAttachment SlotName = "idAttachment"
	SlotBankApproval SlotName = "bankApproval"
)

// Slots lists the file slots in form order. All of them are required.
var Slots = []SlotName{SlotIDFront, SlotIDBack, SlotIDAttachment, SlotBankApproval}

// IsSlot reports whether name is a known file slot.
func IsSlot(name string) bool {
	for _, s := range Slots {
		if string(s) == name {
			return true
		}
	}
	return false
}

// SlotState constants
const (
	SlotEmpty      = "empty"
	SlotInProgress = "in_progress"
	SlotResolved   = "resolved"
)

// Status constants
const (
	StatusEditing    = "editing"
	StatusSubmitting = "submitting"
	StatusSubmitted  = "submitted"
)

// Message types
const (
	MessageSuccess = "success"
	MessageError   = "error"
)

// Attachment is a document kept in memory instead of being uploaded to the
// media host. It is mailed as an attachment.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data,omitempty"`
}

// Slot is the state of one file upload.
type Slot struct {
	State      string      `json:"state"`
	Progress   int         `json:"progress"`
	URL        string      `json:"url,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Errored    bool        `json:"errored"`
}

// Resolved reports whether the slot holds a usable reference.
func (s *Slot) Resolved() bool {
	return s != nil && s.State == SlotResolved && (s.URL != "" || s.Attachment != nil)
}

// Clear returns the slot to its empty state.
func (s *Slot) Clear() {
	*s = Slot{State: SlotEmpty}
}

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Submission is one user's in-progress or completed form.
type Submission struct {
	ID          string               `json:"id"`
	Agent       string               `json:"agent,omitempty"`
	Fields      map[FieldName]string `json:"fields"`
	FieldErrors map[FieldName]string `json:"field_errors"`
	Slots       map[SlotName]*Slot   `json:"slots"`
	Status      string               `json:"status"`
	Message     Message              `json:"message"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// NewSubmission creates an empty submission.
func NewSubmission(id, agent string) *Submission {
	now := time.Now()
	s := &Submission{
		ID:        id,
		Agent:     agent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Reset()
	return s
}

// Reset discards every answer and file reference. ID, agent and creation
// time are kept.
func (s *Submission) Reset() {
	s.Fields = make(map[FieldName]string, len(Fields))
	for _, f := range Fields {
		s.Fields[f] = ""
	}
	s.FieldErrors = make(map[FieldName]string)
	s.Slots = make(map[SlotName]*Slot, len(Slots))
	for _, name := range Slots {
		s.Slots[name] = &Slot{State: SlotEmpty}
	}
	s.Status = StatusEditing
	s.Message = Message{}
	s.UpdatedAt = time.Now()
}

// Slot returns the named slot, creating it if a decoded record lacks it.
func (s *Submission) Slot(name SlotName) *Slot {
	if s.Slots == nil {
		s.Slots = make(map[SlotName]*Slot, len(Slots))
	}
	slot, ok := s.Slots[name]
	if !ok || slot == nil {
		slot = &Slot{State: SlotEmpty}
		s.Slots[name] = slot
	}
	return slot
}

// MissingSlots returns the slots that are not resolved, in form order.
func (s *Submission) MissingSlots() []SlotName {
	var missing []SlotName
	for _, name := range Slots {
		if !s.Slot(name).Resolved() {
			missing = append(missing, name)
		}
	}
	return missing
}

// Clone returns a deep copy safe to hand out of a store.
func (s *Submission) Clone() *Submission {
	c := *s
	c.Fields = make(map[FieldName]string, len(s.Fields))
	for k, v := range s.Fields {
		c.Fields[k] = v
	}
	c.FieldErrors = make(map[FieldName]string, len(s.FieldErrors))
	for k, v := range s.FieldErrors {
		c.FieldErrors[k] = v
	}
	c.Slots = make(map[SlotName]*Slot, len(s.Slots))
	for k, v := range s.Slots {
		if v == nil {
			continue
		}
		slot := *v
		c.Slots[k] = &slot
	}
	return &c
}
