package domain

import (
	"encoding/json"
	"time"
)

// Chain is the ordered production migration list. Every step also rewrites zoneless
// timestamps as UTC.
func Chain() []Migration {
	return []Migration{
		{From: "1.0", To: "2.0", Transform: addMetricsAndSchedule, Validate: validateV2},
		{From: "2.0", To: "3.0", Transform: structureGovernance, Validate: validateV3},
		{From: "3.0", To: "3.1", Transform: declareRecoveryFields, Validate: validateV31},
	}
}

func isSession(doc Document) bool {
	_, ok := doc["session_id"]
	return ok
}

func stamp(doc Document, version string, now time.Time) Document {
	doc["version"] = version
	doc["last_migration"] = now.UTC().Format(time.RFC3339)
	return doc
}

// addMetricsAndSchedule adds the real-time metrics block and review schedule to coach documents.
func addMetricsAndSchedule(doc Document, now time.Time) Document {
	doc = normalizeTimestamps(doc)
	if !isSession(doc) {
		if _, ok := doc["performance_metrics"]; !ok {
			doc["performance_metrics"] = map[string]any{
				"7d_avg_retrieval":           0.0,
				"7d_avg_prediction_accuracy": 0.0,
				"current_card_debt_ratio":    0.0,
				"daily_review_throughput":    60.0,
				"cards_due":                  0.0,
				"cards_completed_today":      0.0,
				"last_transfer_project":      nil,
				"interleaving_sessions_week": 0.0,
				"total_permanent_notes":      0.0,
				"total_flashcards":           0.0,
				"misconceptions_active":      0.0,
				"misconceptions_resolved":    0.0,
			}
		}
		if _, ok := doc["review_schedule"]; !ok {
			doc["review_schedule"] = map[string]any{
				"next_interleaving": nil,
				"next_calibration":  nil,
				"next_synthesis":    nil,
				"next_project_due":  nil,
				"daily_review_time": "07:00",
			}
		}
	}
	return stamp(doc, "2.0", now)
}

func validateV2(doc Document) bool {
	if doc["version"] != "2.0" {
		return false
	}
	if isSession(doc) {
		return true
	}
	return hasKeys(doc, "performance_metrics", "review_schedule")
}

var defaultThresholds = map[string][3]float64{
	"calibration_gate":      {75, 80, 85},
	"card_debt_multiplier":  {1.5, 2.0, 2.5},
	"max_new_cards":         {4, 8, 10},
	"interleaving_per_week": {1, 2, 3},
}

// structureGovernance turns scalar thresholds into bounded objects, adds governance
// status to coach documents and audit fields to session documents.
func structureGovernance(doc Document, now time.Time) Document {
	doc = normalizeTimestamps(doc)
	adjusted := now.UTC().Format(time.RFC3339)
	if isSession(doc) {
		if _, ok := doc["state_history"]; !ok {
			doc["state_history"] = []any{}
		}
		if _, ok := doc["content_hashes"]; !ok {
			doc["content_hashes"] = map[string]any{
				"recall_texts":       []any{},
				"feynman_texts":      []any{},
				"flashcard_contents": []any{},
			}
		}
		return stamp(doc, "3.0", now)
	}

	if raw, ok := doc["governance_thresholds"].(map[string]any); ok {
		for name, value := range raw {
			if scalar, ok := number(value); ok {
				raw[name] = map[string]any{
					"min":           scalar * 0.8,
					"current":       scalar,
					"max":           scalar * 1.2,
					"last_adjusted": adjusted,
				}
			}
		}
		for name, bounds := range defaultThresholds {
			if _, ok := raw[name]; !ok {
				raw[name] = thresholdObject(bounds, adjusted)
			}
		}
	} else {
		thresholds := map[string]any{}
		for name, bounds := range defaultThresholds {
			thresholds[name] = thresholdObject(bounds, adjusted)
		}
		doc["governance_thresholds"] = thresholds
	}

	if _, ok := doc["governance_status"]; !ok {
		doc["governance_status"] = map[string]any{
			"calibration_gate":   "passing",
			"card_debt_gate":     "passing",
			"transfer_gate":      "passing",
			"overall_state":      "NORMAL",
			"last_gate_trigger":  nil,
			"remediation_active": false,
		}
	}
	return stamp(doc, "3.0", now)
}

func thresholdObject(bounds [3]float64, adjusted string) map[string]any {
	return map[string]any{
		"min":           bounds[0],
		"current":       bounds[1],
		"max":           bounds[2],
		"last_adjusted": adjusted,
	}
}

func validateV3(doc Document) bool {
	if doc["version"] != "3.0" {
		return false
	}
	if isSession(doc) {
		_, history := doc["state_history"].([]any)
		_, hashes := doc["content_hashes"].(map[string]any)
		return history && hashes
	}
	thresholds, ok := doc["governance_thresholds"].(map[string]any)
	if !ok {
		return false
	}
	for _, raw := range thresholds {
		t, ok := raw.(map[string]any)
		if !ok || !hasKeys(t, "min", "current", "max") {
			return false
		}
	}
	_, status := doc["governance_status"].(map[string]any)
	return status
}

var recoveryFromOverall = map[string]string{
	"NORMAL":      "NORMAL",
	"REMEDIATION": "REMEDIATION",
	"BLOCKED":     "BLOCKED",
}

// declareRecoveryFields makes the misconception list an explicit session field and
// adds the interleaving gate and recovery state to coach governance status.
func declareRecoveryFields(doc Document, now time.Time) Document {
	doc = normalizeTimestamps(doc)
	if isSession(doc) {
		if _, ok := doc["misconceptions_identified"]; !ok {
			doc["misconceptions_identified"] = []any{}
		}
		if _, ok := doc["state_entered_at"]; !ok {
			if last, ok := doc["last_activity"]; ok {
				doc["state_entered_at"] = last
			}
		}
		return stamp(doc, "3.1", now)
	}
	if status, ok := doc["governance_status"].(map[string]any); ok {
		if _, ok := status["interleaving_gate"]; !ok {
			status["interleaving_gate"] = "passing"
		}
		if _, ok := status["recovery_state"]; !ok {
			overall, _ := status["overall_state"].(string)
			recovery, known := recoveryFromOverall[overall]
			if !known {
				recovery = "NORMAL"
			}
			status["recovery_state"] = recovery
		}
	}
	return stamp(doc, "3.1", now)
}

func validateV31(doc Document) bool {
	if doc["version"] != "3.1" {
		return false
	}
	if isSession(doc) {
		_, ok := doc["misconceptions_identified"].([]any)
		return ok
	}
	status, ok := doc["governance_status"].(map[string]any)
	if !ok {
		return false
	}
	switch status["recovery_state"] {
	case "NORMAL", "WARNING", "BLOCKED", "REMEDIATION", "RECOVERY":
		return true
	default:
		return false
	}
}

func hasKeys(doc map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := doc[k]; !ok {
			return false
		}
	}
	return true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
