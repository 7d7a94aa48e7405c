// Package runner drives the end-to-end storage transactions: the purchase →
// encrypt → publish → register upload sequence and the authorize → fetch →
// decrypt download sequence. The three backing systems are not atomic; each
// sequence is a series of idempotent or safely retryable steps, and every
// failure names the step it happened in.
package runner

import (
	"github.com/silo-network/silo/pkg/index"
	"github.com/silo-network/silo/pkg/types"
)

// Upload steps, in execution order.
const (
	StepResolveProvider = "resolve-provider"
	StepCheckBalance    = "check-balance"
	StepPurchase        = "purchase"
	StepEncrypt         = "encrypt"
	StepPublish         = "publish"
	StepIndex           = "index"
	StepRegister        = "register"
)

// Download steps, in execution order.
const (
	StepLookup    = "lookup"
	StepAuthorize = "authorize"
	StepFetch     = "fetch"
	StepDecrypt   = "decrypt"
	StepPersist   = "persist"
)

// MetadataIndex is the slice of the index the runners use.
type MetadataIndex interface {
	ListActiveProviders() ([]index.ProviderRecord, error)
	GetProvider(addr string) (index.ProviderRecord, error)
	InsertFile(rec index.FileRecord) error
	GetFile(cid string) (index.FileRecord, error)
}

// Credential supplies the caller identity and the material file keys are
// derived from.
type Credential interface {
	Address() types.Address
	KeyMaterial() []byte
}

func stepErr(step string, err error) error {
	return &types.StepError{Step: step, Err: err}
}
