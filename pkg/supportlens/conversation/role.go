package conversation

import "strings"

var (
	customerRoles = []string{"user", "customer", "end-user", "enduser", "end_user", "requester", "client", "고객"}
	agentRoles    = []string{"manager", "agent", "admin", "staff", "operator", "support", "상담원", "매니저"}
	systemRoles   = []string{"bot", "system", "workflow", "automation", "챗봇", "시스템"}
)

// InferRole decides who authored a message. An explicit role field wins.
// Without one, the requester is the customer, author ids that look like bot
// or agent accounts take those roles, and any other author is treated as the
// customer.
func InferRole(roleField, authorID, requesterID string) Role {
	if r := roleFromField(roleField); r != RoleUnknown {
		return r
	}

	author := strings.ToLower(strings.TrimSpace(authorID))
	if author == "" {
		return RoleUnknown
	}
	if requesterID != "" && strings.EqualFold(author, strings.TrimSpace(requesterID)) {
		return RoleCustomer
	}
	if hasAnyPrefix(author, systemRoles) {
		return RoleSystem
	}
	if hasAnyPrefix(author, agentRoles) {
		return RoleAgent
	}
	return RoleCustomer
}

func roleFromField(field string) Role {
	field = strings.ToLower(strings.TrimSpace(field))
	switch {
	case field == "":
		return RoleUnknown
	case contains(customerRoles, field):
		return RoleCustomer
	case contains(systemRoles, field):
		return RoleSystem
	case contains(agentRoles, field):
		return RoleAgent
	}
	return RoleUnknown
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
