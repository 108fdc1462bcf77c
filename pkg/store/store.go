// Package store holds the durable intent records: the intent itself on its
// source chain, fulfillments and settlements on the destination chain. The
// store owns uniqueness of intent ids and monotonicity of status changes;
// only the intent contract's transition functions mutate it.
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/speedrun-go/pkg/models"
)

var (
	// ErrIntentExists is returned when creating an intent whose id is taken
	ErrIntentExists = errors.New("intent already exists")
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyFulfilled is returned on a second fulfillment for an intent id
	ErrAlreadyFulfilled = errors.New("intent already fulfilled")
	// ErrAlreadySettled is returned on a second settlement for an intent id
	ErrAlreadySettled = errors.New("intent already settled")
	// ErrInvalidTransition is returned for status changes the machine forbids
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the durable record of intent state on one chain
type Store interface {
	// CreateIntent persists a new intent record, failing on id collision
	CreateIntent(ctx context.Context, intent *models.Intent) error
	// GetIntent returns the intent record for an id
	GetIntent(ctx context.Context, id common.Hash) (*models.Intent, error)
	// DeleteIntent removes an intent record; used only to unwind a creation
	// whose outbound message could not be emitted
	DeleteIntent(ctx context.Context, id common.Hash) error
	// SetStatus advances the intent's status, enforcing monotonicity
	SetStatus(ctx context.Context, id common.Hash, status models.IntentStatus) error

	// PutFulfillment records the first fulfillment for an intent id;
	// later attempts fail with ErrAlreadyFulfilled
	PutFulfillment(ctx context.Context, f *models.Fulfillment) error
	// GetFulfillment returns the recorded fulfillment for an intent id
	GetFulfillment(ctx context.Context, id common.Hash) (*models.Fulfillment, error)

	// MarkSettled records the settlement outcome exactly once
	MarkSettled(ctx context.Context, s *models.Settlement) error
	// GetSettlement returns the settlement record for an intent id
	GetSettlement(ctx context.Context, id common.Hash) (*models.Settlement, error)

	// StatusOf derives the lifecycle position of an id from whichever records
	// this chain holds: settled beats fulfilled beats the stored intent status,
	// and an id with no records at all is Pending
	StatusOf(ctx context.Context, id common.Hash) (models.IntentStatus, error)
	// Counts returns the number of records per lifecycle stage
	Counts(ctx context.Context) (map[string]int, error)
}
