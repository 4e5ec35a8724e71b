package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/bookwormapp/bookworm/internal/media/images"
	"github.com/bookwormapp/bookworm/pkg/client/apiclient"
	"github.com/bookwormapp/bookworm/pkg/client/feed"
)

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet("bookworm "+name, flag.ContinueOnError)
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register")
	username := fs.String("username", "", "display name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (at least 6 characters)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	user, err := a.machine.Register(ctx, *username, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s!\n", user.Username)
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	user, err := a.machine.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", user.Username)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	a.machine.Logout(ctx)
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func runWhoami(_ context.Context, a *app, _ []string) error {
	st := a.machine.State()
	if !st.Authenticated() {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s>\nid:     %s\navatar: %s\n", st.User.Username, st.User.Email, st.User.ID, st.User.ProfileImage)
	return nil
}

func runFeed(ctx context.Context, a *app, args []string) error {
	fs := newFlags("feed")
	pages := fs.Int("pages", 1, "number of pages to load")
	size := fs.Int("size", feed.DefaultPageSize, "books per page")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	syncer := feed.New(feed.PageSourceFunc(a.client.GetBooks), feed.WithPageSize(*size), feed.WithLogger(a.logger))

	if err := syncer.LoadInitial(ctx); err != nil {
		return err
	}
	for i := 1; i < *pages && syncer.Snapshot().HasMore; i++ {
		if err := syncer.LoadMore(ctx); err != nil {
			return err
		}
	}

	st := syncer.Snapshot()
	if len(st.Books) == 0 {
		fmt.Fprintln(a.out, "No books yet")
		return nil
	}
	for _, b := range st.Books {
		printBook(a, b)
	}
	if st.HasMore {
		fmt.Fprintf(a.out, "-- page %d, more available (use -pages %d)\n", st.CurrentPage, st.CurrentPage+1)
	} else {
		fmt.Fprintf(a.out, "-- page %d, end of feed\n", st.CurrentPage)
	}
	return nil
}

func runSearch(ctx context.Context, a *app, args []string) error {
	fs := newFlags("search")
	limit := fs.Int("limit", 0, "maximum results")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	res, err := a.client.SearchBooks(ctx, strings.Join(fs.Args(), " "), *limit)
	if err != nil {
		return err
	}
	if len(res.Books) == 0 {
		fmt.Fprintf(a.out, "No books match %q\n", res.Query)
		return nil
	}
	for _, b := range res.Books {
		printBook(a, b)
	}
	return nil
}

func runMine(ctx context.Context, a *app, _ []string) error {
	books, err := a.client.GetUserBooks(ctx)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Fprintln(a.out, "You have not listed any books")
		return nil
	}
	for _, b := range books {
		printBook(a, b)
	}
	return nil
}

func runPost(ctx context.Context, a *app, args []string) error {
	fs := newFlags("post")
	title := fs.String("title", "", "book title")
	caption := fs.String("caption", "", "short review")
	rating := fs.Int("rating", 0, "rating from 1 to 5")
	imagePath := fs.String("image", "", "cover image file (jpeg, png, gif or webp)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *title == "" || *caption == "" || *imagePath == "" || *rating == 0 {
		return errors.New("title, caption, rating and image are required")
	}
	if *rating < 1 || *rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}

	image, err := imageDataURL(*imagePath)
	if err != nil {
		return err
	}

	book, err := a.client.CreateBook(ctx, apiclient.CreateBookInput{
		Title:   *title,
		Caption: *caption,
		Image:   image,
		Rating:  *rating,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Listed %q (%s)\n", book.Title, book.ID)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: bookworm delete <book-id>")
	}
	if err := a.client.DeleteBook(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Book deleted")
	return nil
}

func runHealth(ctx context.Context, a *app, _ []string) error {
	h, err := a.client.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "status: %s\n", h.Status)
	for name, c := range h.Components {
		fmt.Fprintf(a.out, "  %-8s %-10s %s\n", name, c.Status, c.Message)
	}
	return nil
}

func printBook(a *app, b apiclient.Book) {
	owner := b.UserID
	if b.Owner != nil {
		owner = b.Owner.Username
	}
	stars := strings.Repeat("*", b.Rating) + strings.Repeat(".", max(0, 5-b.Rating))
	fmt.Fprintf(a.out, "%s  %-30s %s  by %s\n    %s\n    %s\n", stars, b.Title, b.ID, owner, b.Caption, b.Image)
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// imageDataURL reads a cover file and encodes it the way the upload form does.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mediaType := http.DetectContentType(data)
	if !allowedImageTypes[mediaType] {
		return "", fmt.Errorf("unsupported image type %s", mediaType)
	}
	return images.EncodeDataURL(mediaType, data), nil
}
