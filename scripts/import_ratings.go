// import_ratings.go: standalone script that reads expert ratings from a CSV and
// attaches them to stored score rows via the Habitat API.
//
// The CSV needs a header with record_id and rating columns; ratings are on a
// 0..100 scale. Extra columns are ignored, so an exported dataset with a filled
// in rating column works.
//
// Usage:
//
//	go run scripts/import_ratings.go -csv ratings.csv -api http://localhost:8700 -token $HABITAT_ADMIN_TOKEN
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
)

type rating struct {
	RecordID string
	Rating   float64
}

func main() {
	csvPath := flag.String("csv", "ratings.csv", "path to ratings CSV")
	apiURL := flag.String("api", "http://localhost:8700", "Habitat API base URL")
	token := flag.String("token", os.Getenv("HABITAT_ADMIN_TOKEN"), "admin token")
	dryRun := flag.Bool("dry-run", false, "print ratings without posting")
	flag.Parse()

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("open ratings: %v", err)
	}
	defer f.Close()

	ratings, err := readRatings(f)
	if err != nil {
		log.Fatalf("read %s: %v", *csvPath, err)
	}
	log.Printf("parsed %d ratings from %s", len(ratings), *csvPath)

	if *dryRun {
		for i, r := range ratings {
			fmt.Printf("[%d] %s -> %g\n", i+1, r.RecordID, r.Rating)
		}
		return
	}

	client := &http.Client{}
	applied, skipped := 0, 0
	for _, r := range ratings {
		body, _ := json.Marshal(map[string]float64{"rating": r.Rating})
		req, err := http.NewRequest("POST", *apiURL+"/api/v1/scores/"+r.RecordID+"/rating", bytes.NewReader(body))
		if err != nil {
			log.Printf("skip %s: %v", r.RecordID, err)
			skipped++
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		if *token != "" {
			req.Header.Set("Authorization", "Bearer "+*token)
		}

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("skip %s: %v", r.RecordID, err)
			skipped++
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			applied++
		} else {
			log.Printf("skip %s: status %d", r.RecordID, resp.StatusCode)
			skipped++
		}
	}

	log.Printf("done: %d applied, %d skipped", applied, skipped)
}

func readRatings(r io.Reader) ([]rating, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	idCol, ratingCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "record_id", "recordid":
			idCol = i
		case "rating", "expertrating", "expert_rating":
			ratingCol = i
		}
	}
	if idCol < 0 || ratingCol < 0 {
		return nil, fmt.Errorf("header needs record_id and rating columns, got %v", header)
	}

	var out []rating
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		raw := strings.TrimSpace(rec[ratingCol])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 100 {
			return nil, fmt.Errorf("line %d: rating %q must be a number in [0,100]", line, raw)
		}
		out = append(out, rating{RecordID: strings.TrimSpace(rec[idCol]), Rating: v})
	}
	return out, nil
}
