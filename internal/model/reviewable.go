package model

import (
	"fmt"
	"time"
)

// ReviewableType names the domain record kind a Reviewable projects.
// Receipt line items are the only kind this pipeline materializes today;
// the id format leaves room for future extensions (reimbursement
// batches, bank matches, tax alerts).
type ReviewableType string

const ReviewableTypeReceiptLineItem ReviewableType = "receipt_line_item"

// ReviewableID builds the `{type}:{entity}:{pk}` id format the storage
// contract requires parsers to honor for reassembly.
func ReviewableID(typ ReviewableType, entity Entity, pk string) string {
	return fmt.Sprintf("%s:%s:%s", typ, entity, pk)
}

// Reviewable is the synthetic, uniform projection the review queue lists
// and acts on, regardless of the underlying domain table.
type Reviewable struct {
	ID        string // type:entity:pk
	Type      ReviewableType
	Entity    Entity
	CreatedAt time.Time

	SourceTable  string
	SourceSchema string
	SourcePK     string

	Summary string
	Details map[string]interface{}

	Confidence     float64
	RequiresReview bool
	Status         LineReviewStatus
	Assignee       string

	Vendor   string
	Date     *time.Time
	Amount   string // formatted money, display only
	AgeHours float64
}

// ReviewAction is one of the fixed actions the review queue accepts.
type ReviewAction string

const (
	ActionApprove     ReviewAction = "approve"
	ActionReject      ReviewAction = "reject"
	ActionCorrect     ReviewAction = "correct"
	ActionSnooze      ReviewAction = "snooze"
	ActionReassign    ReviewAction = "reassign"
	ActionComment     ReviewAction = "comment"
	ActionRequestInfo ReviewAction = "request_info"
)

// ReviewActivity is an append-only audit record of one action taken
// against a Reviewable. Never mutated.
type ReviewActivity struct {
	ID             string
	ReviewableID   string
	ReviewableType ReviewableType
	Entity         Entity
	Action         ReviewAction
	PerformedBy    string
	OldValues      map[string]interface{}
	NewValues      map[string]interface{}
	Reason         string
	CreatedAt      time.Time
}
