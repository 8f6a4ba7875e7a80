package services

// ServiceContainer holds instances of all the application services. It is the
// main entry point for accessing service functionality and is what the
// handlers are wired against.
type ServiceContainer struct {
	Invoice        InvoiceSvcFacade
	Funding        FundingSvcFacade
	Lock           LockSvcFacade
	Split          SplitSvcFacade
	Reconciliation ReconciliationSvcFacade
	User           UserSvcFacade
	Auth           AuthSvcFacade
}
