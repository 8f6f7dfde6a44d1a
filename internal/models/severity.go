// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package models

// Severity classifies how dangerous an analyzed event is.
type Severity string

// Severity levels, ordered from most to least dangerous.
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// severityRanks orders severities for comparison; higher is more severe.
var severityRanks = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Valid reports whether s is a known severity level.
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// Rank returns a comparable ordering value; higher means more severe.
// Unknown severities rank below INFO.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// ThreatType classifies the kind of attack an analyzed event represents.
type ThreatType string

// Threat classifications recognized by the analyzer and scoring engine.
const (
	ThreatBruteForce       ThreatType = "BRUTE_FORCE"
	ThreatSQLInjection     ThreatType = "SQL_INJECTION"
	ThreatDDoSAttack       ThreatType = "DDOS_ATTACK"
	ThreatRansomware       ThreatType = "RANSOMWARE"
	ThreatMalware          ThreatType = "MALWARE"
	ThreatPortScan         ThreatType = "PORT_SCAN"
	ThreatDataExfiltration ThreatType = "DATA_EXFILTRATION"
	ThreatNormalTraffic    ThreatType = "NORMAL_TRAFFIC"
	ThreatUnknown          ThreatType = "UNKNOWN"
)

// Valid reports whether t is a known threat type.
func (t ThreatType) Valid() bool {
	switch t {
	case ThreatBruteForce, ThreatSQLInjection, ThreatDDoSAttack,
		ThreatRansomware, ThreatMalware, ThreatPortScan,
		ThreatDataExfiltration, ThreatNormalTraffic, ThreatUnknown:
		return true
	}
	return false
}
