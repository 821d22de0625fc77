package books

// Company is the environment-variable prefix identifying one QuickBooks
// tenant. The set is closed: adding a company means adding a constant
// here and provisioning its credentials.
type Company string

const (
	CompanyDjango        Company = "DJANGO"
	CompanyStandardMgmt  Company = "STANDARD_MANAGEMENT_COMPANY"
	CompanyStandardProps Company = "STANDARD_PROPERTIES"
	CompanyCMR           Company = "CMR"
)

// AllCompanies returns every configured company prefix.
func AllCompanies() []Company {
	return []Company{
		CompanyDjango,
		CompanyStandardMgmt,
		CompanyStandardProps,
		CompanyCMR,
	}
}
