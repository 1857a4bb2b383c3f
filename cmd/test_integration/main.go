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

func main() {
	baseURL := os.Getenv("BRAIN_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8898"
	}
	pageURL := os.Getenv("CAPTURE_URL")
	if pageURL == "" {
		pageURL = "https://www.example.com/"
	}

	fmt.Println("Starting smoke test against", baseURL)

	fmt.Println("1. Health...")
	if !sendRequest(baseURL, "GET", "/health", nil) {
		fmt.Println("FAILED: Health")
		os.Exit(1)
	}
	fmt.Println("PASSED: Health")

	fmt.Println("2. Capturing URL...")
	if !sendRequest(baseURL, "POST", "/capture/url", map[string]string{"url": pageURL}) {
		fmt.Println("FAILED: Capture URL")
		os.Exit(1)
	}
	fmt.Println("PASSED: Capture URL")

	fmt.Println("3. Recent interactions...")
	if !sendRequest(baseURL, "GET", "/interactions?limit=1", nil) {
		fmt.Println("FAILED: Interactions")
		os.Exit(1)
	}
	fmt.Println("PASSED: Interactions")
}

func sendRequest(baseURL, method, endpoint string, payload interface{}) bool {
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

	// Capture waits for the model, which can take minutes on a local backend.
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return true
}
