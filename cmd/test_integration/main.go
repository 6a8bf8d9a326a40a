package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	baseURL = "http://localhost:8080"
)

type step struct {
	name     string
	method   string
	endpoint string
	payload  any
}

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	scopeID := fmt.Sprintf("smoke-%d", time.Now().Unix())

	steps := []step{
		{"Record fact", "POST", "/facts", map[string]any{
			"scope_id":    scopeID,
			"entity_id":   "alice",
			"fact_type":   "secret",
			"fact_key":    "heir",
			"value":       "bob is the heir",
			"source_type": "witnessed",
			"confidence":  0.9,
			"is_true":     true,
			"valid_from":  10,
		}},
		{"Record relationship", "POST", "/relationships", map[string]any{
			"scope_id":          scopeID,
			"entity_a":          "alice",
			"entity_b":          "bob",
			"relationship_type": "ally",
			"sentiment":         0.6,
			"trust_level":       0.5,
			"status":            "active",
			"valid_from":        5,
		}},
		{"Record voice profile", "POST", "/entities/alice/voice", map[string]any{
			"scope_id":   scopeID,
			"valid_from": 1,
			"profile": map[string]any{
				"vocabulary_level":   "plain",
				"sentence_structure": "clipped",
				"formality":          "casual",
			},
		}},
		{"Put scene", "PUT", "/scenes/scene-1", map[string]any{
			"scope_id":           scopeID,
			"pov_entity_id":      "alice",
			"narrative_time":     20,
			"present_entity_ids": []string{"alice", "bob"},
		}},
		{"Assemble context", "GET", "/scenes/scene-1/context", nil},
		{"Assemble quick context", "GET", "/scenes/scene-1/context/quick", nil},
		{"Knowledge at time", "GET", "/entities/alice/knowledge?scope=" + scopeID + "&at=20", nil},
		{"Create causal edge", "POST", "/causal/edges", map[string]any{
			"scope_id":        scopeID,
			"cause_event_id":  "betrayal",
			"effect_event_id": "exile",
			"type":            "direct_cause",
			"strength":        8,
		}},
		{"Traverse causes", "GET", "/causal/traverse/betrayal?direction=forward&depth=3", nil},
		{"Save snapshot", "POST", "/assets/sword/snapshots", map[string]any{
			"at_event_ref": "forge",
			"state":        map[string]any{"owner": "smith", "sharpness": 10},
			"created_at":   1,
		}},
		{"Save delta", "POST", "/assets/sword/deltas", map[string]any{
			"event_ref":  "gift",
			"patch":      map[string]any{"owner": "alice"},
			"created_at": 15,
		}},
		{"Reconstruct state", "GET", "/assets/sword/state?at=20", nil},
	}

	for i, s := range steps {
		fmt.Printf("%d. %s...\n", i+1, s.name)
		if !sendRequest(s.method, s.endpoint, s.payload) {
			fmt.Printf("FAILED: %s\n", s.name)
			os.Exit(1)
		}
		fmt.Printf("PASSED: %s\n", s.name)
	}
}

func sendRequest(method, endpoint string, payload any) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	fmt.Printf("Response: %s\n", string(respBody))

	return true
}
