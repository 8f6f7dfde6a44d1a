// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package analyzer

import (
	"fmt"

	"github.com/threatstream/threatstream/internal/models"
)

// fallbackConfidence is assigned to rule-derived verdicts. Rules are
// coarse, so they never claim model-grade certainty.
const fallbackConfidence = 0.5

// normalScenarioConfidence is used when the event declares itself part of
// a "normal" scenario, where benign classification is near certain.
const normalScenarioConfidence = 0.95

type fallbackRule struct {
	severity models.Severity
	threat   models.ThreatType
}

// fallbackRules maps event types to deterministic verdicts.
var fallbackRules = map[string]fallbackRule{
	"brute_force":       {models.SeverityCritical, models.ThreatBruteForce},
	"sql_injection":     {models.SeverityCritical, models.ThreatSQLInjection},
	"ddos":              {models.SeverityCritical, models.ThreatDDoSAttack},
	"ransomware":        {models.SeverityCritical, models.ThreatRansomware},
	"malware":           {models.SeverityCritical, models.ThreatMalware},
	"data_exfiltration": {models.SeverityCritical, models.ThreatDataExfiltration},
	"port_scan":         {models.SeverityHigh, models.ThreatPortScan},
	"authentication":    {models.SeverityMedium, models.ThreatUnknown},
	"login_attempt":     {models.SeverityInfo, models.ThreatNormalTraffic},
	"api_request":       {models.SeverityInfo, models.ThreatNormalTraffic},
	"firewall_event":    {models.SeverityInfo, models.ThreatNormalTraffic},
	"normal_traffic":    {models.SeverityInfo, models.ThreatNormalTraffic},
	"data_access":       {models.SeverityInfo, models.ThreatNormalTraffic},
	"network_traffic":   {models.SeverityInfo, models.ThreatNormalTraffic},
}

// Fallback classifies an event with the deterministic rule table.
func Fallback(event *models.SecurityEvent) models.Analysis {
	if event.ScenarioID == "normal" {
		return models.Analysis{
			Severity:    models.SeverityInfo,
			ThreatType:  models.ThreatNormalTraffic,
			Confidence:  normalScenarioConfidence,
			Description: "Baseline traffic from normal scenario",
			Fallback:    true,
		}
	}

	rule, ok := fallbackRules[event.EventType]
	if !ok {
		rule = fallbackRule{models.SeverityMedium, models.ThreatUnknown}
	}

	return models.Analysis{
		Severity:    rule.severity,
		ThreatType:  rule.threat,
		Confidence:  fallbackConfidence,
		Description: fmt.Sprintf("Rule-based classification of %s event", event.EventType),
		Fallback:    true,
	}
}
