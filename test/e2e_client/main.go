// A manual end-to-end client: it starts a local webhook receiver,
// registers a schedule with a running calsched server, and prints
// every delivery it gets. Run the server first, then:
//
//	go run ./test/e2e_client -server http://localhost:8080
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
)

type createRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	URL        string `json:"url"`
}

func main() {
	logger := log.New(os.Stdout, "e2e-client: ", log.LstdFlags)

	server := flag.String("server", "http://localhost:8080", "calsched server base URL")
	expression := flag.String("expression", "*:*:0/10", "schedule expression to register")
	flag.Parse()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		logger.Fatalf("Failed to listen: %v", err)
	}
	receiverURL := fmt.Sprintf("http://%s/hook", listener.Addr())

	http.HandleFunc("/hook", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Printf("Delivery: name=%v scheduled_for=%v", payload["name"], payload["scheduled_for"])
		w.WriteHeader(http.StatusNoContent)
	})

	body, _ := json.Marshal(createRequest{
		Name:       "e2e-test",
		Expression: *expression,
		URL:        receiverURL,
	})
	resp, err := http.Post(*server+"/api/schedules", "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Fatalf("Failed to register schedule: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		logger.Fatalf("Server rejected schedule: %s", resp.Status)
	}
	logger.Printf("Registered schedule %q, receiving on %s", *expression, receiverURL)

	logger.Fatal(http.Serve(listener, nil))
}
