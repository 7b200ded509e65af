package extract

import "strings"

// Company is a lexicon entry for a recognizable vendor
type Company struct {
	Name     string
	Aliases  []string
	Domains  []string // Official domains, first is canonical
	Products []string
	Topic    string
}

// Topic is a product category that claims can refer to without naming a vendor
type Topic struct {
	Name     string
	Keywords []string
}

// Lexicon holds the companies and topics the extractor recognizes
type Lexicon struct {
	companies []Company
	topics    []Topic

	byAlias   map[string]int // lowercase alias -> company index
	byProduct map[string]int // lowercase product -> company index
}

// NewLexicon builds a lexicon from company and topic lists
func NewLexicon(companies []Company, topics []Topic) *Lexicon {
	l := &Lexicon{
		companies: companies,
		topics:    topics,
		byAlias:   make(map[string]int),
		byProduct: make(map[string]int),
	}
	for i, c := range companies {
		l.byAlias[strings.ToLower(c.Name)] = i
		for _, alias := range c.Aliases {
			l.byAlias[strings.ToLower(alias)] = i
		}
		for _, p := range c.Products {
			l.byProduct[strings.ToLower(p)] = i
		}
	}
	return l
}

// Company looks up a company by name or alias
func (l *Lexicon) Company(name string) (Company, bool) {
	idx, ok := l.byAlias[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Company{}, false
	}
	return l.companies[idx], true
}

// ProductOwner returns the company that ships a product
func (l *Lexicon) ProductOwner(product string) (Company, bool) {
	idx, ok := l.byProduct[strings.ToLower(strings.TrimSpace(product))]
	if !ok {
		return Company{}, false
	}
	return l.companies[idx], true
}

// OfficialDomains returns the official domains of the named companies and
// of the owners of the named products
func (l *Lexicon) OfficialDomains(companies, products []string) []string {
	seen := make(map[string]bool)
	var domains []string
	add := func(c Company) {
		for _, d := range c.Domains {
			if !seen[d] {
				seen[d] = true
				domains = append(domains, d)
			}
		}
	}
	for _, name := range companies {
		if c, ok := l.Company(name); ok {
			add(c)
		} else if looksLikeDomain(name) {
			d := strings.ToLower(name)
			if !seen[d] {
				seen[d] = true
				domains = append(domains, d)
			}
		}
	}
	for _, p := range products {
		if c, ok := l.ProductOwner(p); ok {
			add(c)
		}
	}
	return domains
}

// DefaultLexicon returns the built-in vendor and topic lexicon
func DefaultLexicon() *Lexicon {
	return NewLexicon(defaultCompanies, defaultTopics)
}

var defaultCompanies = []Company{
	{Name: "Salesforce", Aliases: []string{"SFDC"}, Domains: []string{"salesforce.com", "force.com"}, Products: []string{"Sales Cloud", "Service Cloud", "Marketing Cloud", "Tableau", "MuleSoft", "Slack"}, Topic: "crm"},
	{Name: "HubSpot", Domains: []string{"hubspot.com"}, Products: []string{"HubSpot CRM", "Marketing Hub", "Sales Hub", "Service Hub"}, Topic: "crm"},
	{Name: "Zoho", Domains: []string{"zoho.com"}, Products: []string{"Zoho CRM", "Zoho Books", "Zoho Desk"}, Topic: "crm"},
	{Name: "Pipedrive", Domains: []string{"pipedrive.com"}, Topic: "crm"},
	{Name: "Freshworks", Domains: []string{"freshworks.com"}, Products: []string{"Freshsales", "Freshdesk"}, Topic: "crm"},
	{Name: "Microsoft", Domains: []string{"microsoft.com", "azure.microsoft.com"}, Products: []string{"Dynamics 365", "Azure", "Microsoft Teams", "Power BI"}, Topic: "cloud infrastructure"},
	{Name: "Oracle", Domains: []string{"oracle.com", "netsuite.com"}, Products: []string{"NetSuite", "Oracle Cloud"}, Topic: "erp"},
	{Name: "SAP", Domains: []string{"sap.com"}, Products: []string{"S/4HANA", "SuccessFactors", "Concur"}, Topic: "erp"},
	{Name: "Workday", Domains: []string{"workday.com"}, Topic: "hr software"},
	{Name: "BambooHR", Domains: []string{"bamboohr.com"}, Topic: "hr software"},
	{Name: "Zendesk", Domains: []string{"zendesk.com"}, Topic: "help desk"},
	{Name: "Atlassian", Domains: []string{"atlassian.com"}, Products: []string{"Jira", "Confluence", "Trello"}, Topic: "project management"},
	{Name: "Asana", Domains: []string{"asana.com"}, Topic: "project management"},
	{Name: "monday.com", Domains: []string{"monday.com"}, Topic: "project management"},
	{Name: "Snowflake", Domains: []string{"snowflake.com"}, Topic: "data warehouse"},
	{Name: "Databricks", Domains: []string{"databricks.com"}, Topic: "data warehouse"},
	{Name: "Amazon Web Services", Aliases: []string{"AWS"}, Domains: []string{"aws.amazon.com"}, Products: []string{"Redshift", "EC2"}, Topic: "cloud infrastructure"},
	{Name: "Google Cloud", Aliases: []string{"GCP"}, Domains: []string{"cloud.google.com"}, Products: []string{"BigQuery"}, Topic: "cloud infrastructure"},
	{Name: "Adobe", Domains: []string{"adobe.com"}, Products: []string{"Marketo", "Adobe Experience Cloud"}, Topic: "marketing automation"},
	{Name: "Mailchimp", Domains: []string{"mailchimp.com"}, Topic: "marketing automation"},
	{Name: "Shopify", Domains: []string{"shopify.com"}, Topic: "ecommerce"},
	{Name: "Stripe", Domains: []string{"stripe.com"}, Topic: "payments"},
	{Name: "Zillow", Domains: []string{"zillow.com"}, Topic: "real estate"},
	{Name: "Redfin", Domains: []string{"redfin.com"}, Topic: "real estate"},
	{Name: "Realtor.com", Domains: []string{"realtor.com"}, Topic: "real estate"},
	{Name: "LoopNet", Domains: []string{"loopnet.com"}, Topic: "real estate"},
}

var defaultTopics = []Topic{
	{Name: "crm", Keywords: []string{"crm", "customer relationship management", "sales pipeline"}},
	{Name: "erp", Keywords: []string{"erp", "enterprise resource planning", "accounting software"}},
	{Name: "marketing automation", Keywords: []string{"marketing automation", "email marketing", "marketing platform"}},
	{Name: "help desk", Keywords: []string{"help desk", "helpdesk", "customer support software", "ticketing"}},
	{Name: "project management", Keywords: []string{"project management", "task management", "work management"}},
	{Name: "data warehouse", Keywords: []string{"data warehouse", "data warehousing", "analytics platform", "data platform"}},
	{Name: "cloud infrastructure", Keywords: []string{"cloud infrastructure", "cloud hosting", "cloud provider", "cloud migration"}},
	{Name: "hr software", Keywords: []string{"hr software", "hris", "payroll", "applicant tracking"}},
	{Name: "ecommerce", Keywords: []string{"ecommerce", "e-commerce", "online store"}},
	{Name: "payments", Keywords: []string{"payment processing", "payments platform", "payment gateway"}},
	{Name: "real estate", Keywords: []string{"real estate", "property", "properties", "office space", "commercial space", "apartment", "home listings"}},
	{Name: "cybersecurity", Keywords: []string{"cybersecurity", "endpoint security", "siem", "zero trust"}},
}

// looksLikeDomain reports whether s is a bare domain such as acme.io
func looksLikeDomain(s string) bool {
	return domainPattern.MatchString(strings.ToLower(s))
}

// companyByDomain finds the company that owns a domain
func (l *Lexicon) companyByDomain(domain string) (Company, bool) {
	domain = strings.TrimPrefix(strings.ToLower(domain), "www.")
	for _, c := range l.companies {
		for _, d := range c.Domains {
			if d == domain {
				return c, true
			}
		}
	}
	return Company{}, false
}
