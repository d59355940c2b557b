package main

import (
	"database/sql"

	billingservice "streak/internal/billing/service"
	billingstore "streak/internal/billing/store"
	challengeservice "streak/internal/challenge/service"
	challengestore "streak/internal/challenge/store/challenge"
	enrollmentstore "streak/internal/challenge/store/enrollment"
	proofstore "streak/internal/challenge/store/proof"
	winnerstore "streak/internal/challenge/store/winner"
	identityservice "streak/internal/identity/service"
	identitystore "streak/internal/identity/store/identity"
	tenantstore "streak/internal/identity/store/tenant"
	offerservice "streak/internal/offer/service"
	offerstore "streak/internal/offer/store"
	"streak/pkg/platform/outbox"
	outboxmemory "streak/pkg/platform/outbox/store/memory"
	outboxpostgres "streak/pkg/platform/outbox/store/postgres"
	txcontext "streak/pkg/platform/tx"
)

type offerStore interface {
	offerservice.Store
	challengeservice.DependentStore
}

// stores holds one backend for every bounded context. All of them share tx so
// cross-context writes, such as a purchase enrollment and its ledger row,
// commit together.
type stores struct {
	tx          txcontext.Runner
	outbox      outbox.Store
	tenants     identityservice.TenantStore
	identities  identityservice.IdentityStore
	challenges  challengeservice.ChallengeStore
	enrollments challengeservice.EnrollmentStore
	proofs      challengeservice.ProofStore
	winners     challengeservice.WinnerStore
	offers      offerStore
	billing     billingservice.Store
}

func newPostgresStores(db *sql.DB) *stores {
	return &stores{
		tx:          txcontext.NewPostgres(db),
		outbox:      outboxpostgres.New(db),
		tenants:     tenantstore.NewPostgres(db),
		identities:  identitystore.NewPostgres(db),
		challenges:  challengestore.NewPostgres(db),
		enrollments: enrollmentstore.NewPostgres(db),
		proofs:      proofstore.NewPostgres(db),
		winners:     winnerstore.NewPostgres(db),
		offers:      offerstore.NewPostgres(db),
		billing:     billingstore.NewPostgres(db),
	}
}

// newInMemoryStores backs local runs without DATABASE_URL. Data is lost on exit.
func newInMemoryStores() *stores {
	return &stores{
		tx:          txcontext.NewInMemory(),
		outbox:      outboxmemory.New(),
		tenants:     tenantstore.NewInMemory(),
		identities:  identitystore.NewInMemory(),
		challenges:  challengestore.NewInMemory(),
		enrollments: enrollmentstore.NewInMemory(),
		proofs:      proofstore.NewInMemory(),
		winners:     winnerstore.NewInMemory(),
		offers:      offerstore.NewInMemory(),
		billing:     billingstore.NewInMemory(),
	}
}
