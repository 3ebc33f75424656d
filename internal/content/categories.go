package content

// DefaultCategory is used when neither primaryCategory nor categories
// carries a valid entry.
const DefaultCategory = "workflow-integration"

// CategoryGroup is a named set of directory categories.
type CategoryGroup struct {
	Name       string
	Categories []string
}

var categoryGroups = []CategoryGroup{
	{Name: "data", Categories: []string{
		"contact-company-data", "data-enrichment-hygiene", "intent-signals",
		"market-competitive-research", "ai-data-agents",
	}},
	{Name: "marketing", Categories: []string{
		"marketing-automation-email", "abm-demand-gen", "content-creative",
		"social-community", "seo-organic", "ai-marketing-tools",
	}},
	{Name: "sales", Categories: []string{
		"crm", "sales-engagement", "sales-enablement", "cpq-proposals", "ai-sales-assistants",
	}},
	{Name: "revops", Categories: []string{
		"lead-management", "pipeline-forecasting", "revenue-analytics-attribution",
		"workflow-integration", "ai-revops-tools",
	}},
	{Name: "customer", Categories: []string{
		"customer-success", "product-analytics-adoption", "support-feedback", "ai-customer-tools",
	}},
	{Name: "partnerships", Categories: []string{
		"partner-management", "affiliates-referrals", "ai-partnership-tools",
	}},
}

var validCategories = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, g := range categoryGroups {
		for _, c := range g.Categories {
			m[c] = struct{}{}
		}
	}
	return m
}()

// CategoryGroups returns the category taxonomy in display order.
func CategoryGroups() []CategoryGroup {
	out := make([]CategoryGroup, len(categoryGroups))
	copy(out, categoryGroups)
	return out
}

// IsValidCategory reports whether c belongs to the taxonomy.
func IsValidCategory(c string) bool {
	_, ok := validCategories[c]
	return ok
}

// ResolveCategories returns a valid primary category and the filtered
// category list, which always contains the primary category first when it
// had to be added.
func ResolveCategories(primary string, categories []string) (string, []string) {
	valid := make([]string, 0, len(categories))
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if !IsValidCategory(c) {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		valid = append(valid, c)
	}

	if !IsValidCategory(primary) {
		primary = DefaultCategory
		if len(valid) > 0 {
			primary = valid[0]
		}
	}

	if _, ok := seen[primary]; !ok {
		valid = append([]string{primary}, valid...)
	}
	return primary, valid
}
