package repositories

// RepositoryProvider bundles every repository facade so wiring code can pass
// one value around instead of seven.
type RepositoryProvider struct {
	Invoice  InvoiceRepositoryWithTx
	Funding  FundingRepositoryFacade
	Draw     DrawRepositoryFacade
	Budget   BudgetRepositoryFacade
	Lock     LockRepository
	Activity ActivityRepository
	User     UserRepositoryFacade
}
