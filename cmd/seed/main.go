// Package main provides a tool to seed the store with sample threads.
//
// This fills a data directory with captured threads, collections, and tags
// so search, stats, and export can be exercised against realistic data.
//
// Usage:
//
//	DATA_PATH=~/threadstash go run ./cmd/seed
//	DATA_PATH=~/threadstash go run ./cmd/seed --threads 25
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/id"
	"github.com/threadstash/threadstash-server/internal/store/badger"
)

var threadCount = flag.Int("threads", 12, "Number of sample threads to create")

var sampleAuthors = []struct {
	username string
	name     string
}{
	{"gopherchase", "Chase the Gopher"},
	{"distsysdiary", "Distributed Systems Diary"},
	{"plainoldtext", "Plain Old Text"},
	{"threadarchivist", "The Thread Archivist"},
}

var sampleTexts = []string{
	"A thread on why boring technology keeps winning in production.",
	"Everything I learned shipping a side project in a weekend.",
	"Let's talk about backpressure and what happens when you ignore it.",
	"The history of the humble text file, in twelve posts.",
	"Write-ahead logs explained with grocery store analogies.",
	"Hot take: most caching bugs are actually invalidation bugs wearing a disguise.",
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/threadstash")
	}
	dbPath := filepath.Join(dataPath, "db")

	fmt.Printf("Opening store at: %s\n", dbPath)

	s, err := badger.Open(dbPath, 0, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// A couple of collections to spread threads across.
	collectionIDs := []string{domain.DefaultCollectionID}
	for _, name := range []string{"Tech Threads", "Read Later"} {
		collID, err := id.Generate(id.PrefixCollection)
		if err != nil {
			log.Fatalf("Failed to generate collection ID: %v", err)
		}
		coll := &domain.Collection{
			ID:        collID,
			Name:      name,
			CreatedAt: time.Now(),
			ThreadIDs: []string{},
		}
		if err := s.CreateCollection(ctx, coll); err != nil {
			log.Fatalf("Failed to create collection %q: %v", name, err)
		}
		collectionIDs = append(collectionIDs, collID)
		fmt.Printf("Created collection: %s (%s)\n", name, collID)
	}

	// A tag pool to attach at random.
	var tagIDs []string
	for _, name := range []string{"golang", "databases", "writing"} {
		tagID, err := id.Generate(id.PrefixTag)
		if err != nil {
			log.Fatalf("Failed to generate tag ID: %v", err)
		}
		tag := &domain.Tag{
			ID:        tagID,
			Name:      name,
			CreatedAt: time.Now(),
		}
		if err := s.CreateTag(ctx, tag); err != nil {
			log.Fatalf("Failed to create tag %q: %v", name, err)
		}
		tagIDs = append(tagIDs, tagID)
		fmt.Printf("Created tag: %s (%s)\n", name, tagID)
	}

	created := 0
	for i := 0; i < *threadCount; i++ {
		author := sampleAuthors[rng.Intn(len(sampleAuthors))]

		posts := make([]domain.Post, 1+rng.Intn(5))
		base := time.Now().Add(-time.Duration(rng.Intn(60*24)) * time.Hour)
		for j := range posts {
			posts[j] = domain.Post{
				ID:        fmt.Sprintf("seed-%d-%d", i, j),
				Text:      sampleTexts[rng.Intn(len(sampleTexts))],
				Timestamp: base.Add(time.Duration(j) * time.Minute),
				IsReply:   j > 0,
			}
		}

		capture := &domain.ThreadCapture{
			URL:            fmt.Sprintf("https://example.com/%s/status/%d", author.username, 1000+i),
			AuthorUsername: author.username,
			AuthorName:     author.name,
			Posts:          posts,
			Likes:          rng.Intn(5000),
			Retweets:       rng.Intn(800),
			Replies:        rng.Intn(300),
		}

		thread, err := s.SaveThread(ctx, capture)
		if err != nil {
			log.Fatalf("Failed to save thread %d: %v", i, err)
		}
		created++

		if coll := collectionIDs[rng.Intn(len(collectionIDs))]; coll != domain.DefaultCollectionID {
			if err := s.MoveThreadToCollection(ctx, thread.ID, coll); err != nil {
				log.Printf("Failed to move thread %s: %v", thread.ID, err)
			}
		}

		if rng.Intn(2) == 0 {
			tag := tagIDs[rng.Intn(len(tagIDs))]
			if _, err := s.AddTagToThread(ctx, thread.ID, tag); err != nil {
				log.Printf("Failed to tag thread %s: %v", thread.ID, err)
			}
		}
	}

	fmt.Printf("\nSeeded %d threads across %d collections\n", created, len(collectionIDs))
}
