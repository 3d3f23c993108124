package realtime

// CompanyNotifier publishes company-scoped payloads onto the analytics
// topic. It satisfies the analytics notifier contract.
type CompanyNotifier struct {
	hub *Hub
}

func NewCompanyNotifier(hub *Hub) *CompanyNotifier {
	return &CompanyNotifier{hub: hub}
}

func (n *CompanyNotifier) NotifyCompany(companyID string, payload any) {
	n.hub.Publish(AnalyticsTopic(companyID), payload)
}
