package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	baseURL := os.Getenv("E2E_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health Check
	checkEndpoint(baseURL, "GET", "/health", nil, 200)

	// 2. Save two snapshots
	older := createSnapshot(baseURL, "e2e-client-old", "2000-01-01T00:00:00")
	newer := createSnapshot(baseURL, "e2e-client-new", "2999-01-01T00:00:00")
	fmt.Printf("Created snapshots %d and %d\n", older, newer)

	// 3. List must start with the newest
	body := checkEndpoint(baseURL, "GET", "/api/history", nil, 200)
	var list []map[string]interface{}
	if err := json.Unmarshal(body, &list); err != nil || len(list) == 0 {
		log.Fatalf("unexpected history list: %s", string(body))
	}
	if int64(list[0]["id"].(float64)) != newer {
		log.Fatalf("expected snapshot %d first, got %v", newer, list[0]["id"])
	}

	// 4. Detail and missing id
	checkEndpoint(baseURL, "GET", fmt.Sprintf("/api/history/%d", older), nil, 200)
	checkEndpoint(baseURL, "GET", "/api/history/999999999", nil, 404)

	// 5. Price proxy input validation never reaches upstream
	checkEndpoint(baseURL, "GET", "/api/stock/price", nil, 400)
	checkEndpoint(baseURL, "GET", "/api/stock/price?symbol=AAPL&date=2024-13-40", nil, 400)

	fmt.Println("ALL TESTS PASSED")
}

func checkEndpoint(baseURL, method, path string, body interface{}, expectedStatus int) []byte {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return respBody
}

func createSnapshot(baseURL, client, timestamp string) int64 {
	fmt.Printf("Creating snapshot for %s...\n", client)
	reqBody := map[string]interface{}{
		"clientName":            client,
		"startDate":             "2024-01-02",
		"initialBalance":        10000,
		"currentValue":          10500,
		"totalReturn":           500,
		"totalReturnPercentage": 5,
		"timestamp":             timestamp,
		"stocks": []map[string]interface{}{
			{"symbol": "AAPL", "allocation": 1, "initialValue": 10000, "currentValue": 10500, "return": 500, "returnPercentage": 5},
		},
	}
	respBody := checkEndpoint(baseURL, "POST", "/api/history", reqBody, 200)

	var res struct {
		Success bool  `json:"success"`
		ID      int64 `json:"id"`
	}
	if err := json.Unmarshal(respBody, &res); err != nil || !res.Success {
		log.Fatalf("Create snapshot failed: %s", string(respBody))
	}
	return res.ID
}
