package realtime

// Topic key constructors. Each family is isolated per campaign/company
// so one noisy dashboard never fans out to another tenant.

func LiveTopic(campaignID string) string { return "live:" + campaignID }

func MetricsTopic(campaignID string) string { return "metrics:" + campaignID }

func AnalyticsTopic(companyID string) string { return "analytics:" + companyID }

func AgentNumbersTopic(companyID string) string { return "agent_numbers:" + companyID }
