// Package main seeds a BookWorm data directory with demo readers and books.
//
// Books are created through the same services the API uses, so images are
// hosted and indexed for search.
//
// Usage:
//
//	DATA_PATH=~/BookWorm/data go run ./cmd/seed
//	DATA_PATH=~/BookWorm/data go run ./cmd/seed -users 5 -books 40
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/bookwormapp/bookworm/internal/auth"
	domainerrors "github.com/bookwormapp/bookworm/internal/errors"
	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/internal/media/images"
	"github.com/bookwormapp/bookworm/internal/search"
	"github.com/bookwormapp/bookworm/internal/service"
	"github.com/bookwormapp/bookworm/internal/store"
)

var (
	userCount = flag.Int("users", 3, "Number of demo readers to create")
	bookCount = flag.Int("books", 20, "Number of books to list")
	publicURL = flag.String("public-url", "http://localhost:3000", "Public base URL for image links")
	verbose   = flag.Bool("v", false, "Log service activity")
)

type catalogEntry struct {
	title   string
	caption string
}

var catalog = []catalogEntry{
	{"Pride and Prejudice", "Sharp dialogue and a slow burn that still holds up."},
	{"Moby-Dick", "A whale of a book about obsession and the open sea."},
	{"Frankenstein", "The original cautionary tale about ambition and creation."},
	{"The Time Machine", "A short trip to the far future with a grim view of progress."},
	{"Dracula", "Told in letters and diaries, creepier than any film version."},
	{"Middlemarch", "A whole town of people you end up caring about."},
	{"Great Expectations", "Pip's coming of age with a cast of unforgettable oddballs."},
	{"The Odyssey", "The long road home, full of monsters and clever tricks."},
	{"Jane Eyre", "A fierce narrator and a house full of secrets."},
	{"War and Peace", "Huge, sprawling and worth every chapter."},
	{"The Call of the Wild", "A dog's journey through the Klondike gold rush."},
	{"Little Women", "Four sisters growing up during the Civil War."},
	{"The Picture of Dorian Gray", "Wit on every page and a very dark portrait."},
	{"Treasure Island", "Pirates, maps and a great villain in Long John Silver."},
	{"Wuthering Heights", "Stormy moors and a love story that is mostly revenge."},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/BookWorm/data")
	}

	slogger := logger.Discard()
	if *verbose {
		slogger = logger.New(logger.Config{Level: logger.ParseLevel("debug")}).Logger
	}

	fmt.Printf("Seeding data directory: %s\n", dataPath)

	s, err := store.New(filepath.Join(dataPath, "db"), slogger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	key, err := auth.LoadOrGenerateKey(dataPath)
	if err != nil {
		log.Fatalf("Failed to load auth key: %v", err)
	}
	tokens, err := auth.NewTokenService(key, time.Hour)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}

	storage, err := images.NewStorageWithSubdir(dataPath, "images")
	if err != nil {
		log.Fatalf("Failed to open image storage: %v", err)
	}
	host := images.NewLocalHost(storage, images.NewProcessor(1600, slogger), *publicURL, slogger)

	index, err := search.NewSearchIndex(search.Options{DataPath: dataPath, Logger: slogger})
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	authSvc := service.NewAuthService(s, tokens, slogger)
	bookSvc := service.NewBookService(s, host, index, slogger)

	ctx := context.Background()
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 42))

	var ownerIDs []string
	for n := range *userCount {
		username := fmt.Sprintf("reader%d", n+1)
		resp, err := authSvc.Register(ctx, service.RegisterRequest{
			Username: username,
			Email:    username + "@bookworm.local",
			Password: "bookworm",
		})
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			login, lerr := authSvc.Login(ctx, service.LoginRequest{Email: username + "@bookworm.local", Password: "bookworm"})
			if lerr != nil {
				log.Printf("Skipping %s: exists with a different password", username)
				continue
			}
			resp = login
		} else if err != nil {
			log.Fatalf("Failed to create %s: %v", username, err)
		}
		ownerIDs = append(ownerIDs, resp.User.ID)
		fmt.Printf("  reader %-10s %s (password: bookworm)\n", username, resp.User.ID)
	}

	if len(ownerIDs) == 0 {
		log.Fatal("No readers available to own books")
	}

	for n := range *bookCount {
		entry := catalog[n%len(catalog)]
		owner := ownerIDs[rng.IntN(len(ownerIDs))]

		book, err := bookSvc.Create(ctx, owner, service.CreateBookRequest{
			Title:   entry.title,
			Caption: entry.caption,
			Image:   coverImage(rng),
			Rating:  1 + rng.IntN(5),
		})
		if err != nil {
			log.Fatalf("Failed to create %q: %v", entry.title, err)
		}
		fmt.Printf("  book   %-28s rating %d  %s\n", book.Title, book.Rating, book.ImageURL)
	}

	fmt.Printf("\nSeeded %d readers and %d books\n", len(ownerIDs), *bookCount)
}

// coverImage renders a random two-tone gradient as a PNG data URL.
func coverImage(rng *rand.Rand) string {
	const w, h = 120, 180

	from := color.RGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255}
	to := color.RGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		t := float64(y) / float64(h-1)
		c := color.RGBA{
			R: lerp(from.R, to.R, t),
			G: lerp(from.G, to.G, t),
			B: lerp(from.B, to.B, t),
			A: 255,
		}
		for x := range w {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Fatalf("Failed to encode cover: %v", err)
	}
	return images.EncodeDataURL("image/png", buf.Bytes())
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}
