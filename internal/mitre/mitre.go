// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

// Package mitre maps threat classifications onto MITRE ATT&CK techniques
// for display alongside analyzed threats.
package mitre

import (
	"strings"

	"github.com/threatstream/threatstream/internal/models"
)

const attackBaseURL = "https://attack.mitre.org/techniques/"

// techniques maps each threat type to its primary ATT&CK technique.
var techniques = map[models.ThreatType]models.MITRETechnique{
	models.ThreatBruteForce: {
		TechniqueID:   "T1110",
		TechniqueName: "Brute Force",
		Tactic:        "Credential Access",
	},
	models.ThreatSQLInjection: {
		TechniqueID:   "T1190",
		TechniqueName: "Exploit Public-Facing Application",
		Tactic:        "Initial Access",
	},
	models.ThreatDDoSAttack: {
		TechniqueID:   "T1498",
		TechniqueName: "Network Denial of Service",
		Tactic:        "Impact",
	},
	models.ThreatRansomware: {
		TechniqueID:   "T1486",
		TechniqueName: "Data Encrypted for Impact",
		Tactic:        "Impact",
	},
	models.ThreatPortScan: {
		TechniqueID:   "T1046",
		TechniqueName: "Network Service Discovery",
		Tactic:        "Discovery",
	},
	models.ThreatDataExfiltration: {
		TechniqueID:   "T1041",
		TechniqueName: "Exfiltration Over C2 Channel",
		Tactic:        "Exfiltration",
	},
	models.ThreatMalware: {
		TechniqueID:   "T1204",
		TechniqueName: "User Execution",
		Tactic:        "Execution",
	},
}

// Lookup returns the ATT&CK technique for a threat type, or nil for
// classifications with no mapping (normal traffic, unknown).
func Lookup(t models.ThreatType) *models.MITRETechnique {
	technique, ok := techniques[t]
	if !ok {
		return nil
	}
	technique.URL = attackBaseURL + technique.TechniqueID + "/"
	return &technique
}

// LookupByID returns the technique with the given ATT&CK ID, or nil.
// Sub-technique ids (T1110.001) resolve to their parent technique.
func LookupByID(id string) *models.MITRETechnique {
	if i := strings.IndexByte(id, '.'); i > 0 {
		id = id[:i]
	}
	for _, technique := range techniques {
		if technique.TechniqueID == id {
			technique.URL = attackBaseURL + technique.TechniqueID + "/"
			return &technique
		}
	}
	return nil
}
