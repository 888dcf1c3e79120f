package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/shpitdev/conference-outreach-pipeline/internal/discovery"
	"github.com/shpitdev/conference-outreach-pipeline/internal/mockapi"
)

func main() {
	addr := defaultString("MOCK_API_ADDR", ":8080")
	speakersFile := defaultString("MOCK_API_SPEAKERS_FILE", "")
	repliesFile := defaultString("MOCK_API_REPLIES_FILE", "")
	token := defaultString("MOCK_API_TOKEN", "")

	fs := flag.NewFlagSet("mock-api", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&speakersFile, "speakers", speakersFile, "Speakers (.json, .csv or .xlsx) listed on /speakers")
	fs.StringVar(&repliesFile, "replies", repliesFile, "JSON object mapping company name to canned completion text")
	fs.StringVar(&token, "token", token, "Bearer token required on /v1/chat/completions (empty disables)")
	_ = fs.Parse(os.Args[1:])

	var srv *mockapi.Server
	if speakersFile != "" {
		speakers, err := discovery.FileSource{Path: speakersFile}.Load(context.Background())
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "load speakers: %v\n", err)
			os.Exit(2)
		}
		srv = mockapi.New(speakers)
	} else {
		srv = mockapi.New(nil)
	}
	srv.RequireBearerToken(token)

	if repliesFile != "" {
		b, err := os.ReadFile(repliesFile)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "read replies: %v\n", err)
			os.Exit(2)
		}
		var replies map[string]string
		if err := json.Unmarshal(b, &replies); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "parse replies: %v\n", err)
			os.Exit(2)
		}
		for company, reply := range replies {
			srv.SetReply(company, reply)
		}
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-api listening on %s (speakers=%q replies=%q)\n", addr, speakersFile, repliesFile)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
