package config

// DefaultDepartments returns the built-in department enumeration with
// keyword lexicons and canonical descriptions. Deployments override these
// from the config file; the defaults cover the standard HR/IT/Security
// helpdesk split.
//
// Lexicon entries may be single words or multi-word n-grams; the router
// scores them differently (see internal/router).
func DefaultDepartments() []DepartmentProfile {
	return []DepartmentProfile{
		{
			Name: "HR",
			Description: "Human Resources handles employee relations, benefits, payroll, " +
				"hiring, training, and workplace policies.",
			Keywords: []string{
				"salary", "payroll", "leave", "vacation", "sick leave", "maternity", "paternity",
				"benefits", "insurance", "health", "dental", "401k", "retirement", "pension",
				"hiring", "recruitment", "onboarding", "offboarding", "termination", "resignation",
				"performance", "review", "appraisal", "promotion", "training", "development",
				"harassment", "discrimination", "complaint", "grievance", "policy", "handbook",
				"employee", "staff", "colleague", "manager", "supervisor", "team lead",
				"contract", "employment", "probation", "full-time", "part-time", "contractor",
				"overtime", "shift", "schedule", "attendance", "time off", "pto", "holiday",
			},
		},
		{
			Name: "IT",
			Description: "Information Technology manages computers, software, networks, " +
				"email, technical support, and cybersecurity.",
			Keywords: []string{
				"computer", "laptop", "desktop", "monitor", "keyboard", "mouse", "printer",
				"software", "application", "app", "program", "install", "update", "upgrade",
				"password", "login", "access", "account", "credentials", "authentication",
				"network", "wifi", "internet", "connection", "server", "database", "cloud",
				"email", "outlook", "gmail", "attachment", "spam", "phishing",
				"backup", "restore", "file", "folder", "document", "excel", "word", "pdf",
				"virus", "malware", "antivirus", "security", "firewall", "vpn", "remote",
				"troubleshoot", "bug", "error", "crash", "freeze", "slow", "performance",
				"hard drive", "storage", "memory", "ram", "cpu", "hardware", "device",
			},
		},
		{
			Name: "Security",
			Description: "Security manages building access, visitor management, surveillance, " +
				"incident response, and workplace safety.",
			Keywords: []string{
				"badge", "access card", "keycard", "entry", "door", "gate", "building",
				"visitor", "guest", "contractor", "vendor", "escort", "registration",
				"camera", "surveillance", "monitoring", "cctv", "recording", "footage",
				"incident", "breach", "unauthorized", "suspicious", "threat", "emergency",
				"evacuation", "fire drill", "safety", "protocol", "procedure", "compliance",
				"parking", "vehicle", "license plate", "traffic", "patrol", "guard",
				"alarm", "alert", "notification", "report", "investigation", "evidence",
				"tailgating", "piggybacking", "social engineering", "phishing", "scam",
				"theft", "vandalism", "trespassing", "assault", "harassment", "violence",
			},
		},
	}
}
