package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"
	portsrepo "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/repositories"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		Invoice:  newPgxInvoiceRepository(dbPool),
		Funding:  newPgxFundingRepository(dbPool),
		Draw:     newPgxDrawRepository(dbPool),
		Budget:   newPgxBudgetRepository(dbPool),
		Lock:     newPgxLockRepository(dbPool),
		Activity: newPgxActivityRepository(dbPool),
		User:     newPgxUserRepository(dbPool),
	}
}
