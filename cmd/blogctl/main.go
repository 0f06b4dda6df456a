package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/postwing/blogclient/internal/atom"
	"github.com/postwing/blogclient/internal/blog"
	"github.com/postwing/blogclient/internal/config"
	"github.com/postwing/blogclient/internal/metaweblog"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx := context.Background()

	if err := run(ctx, cfg, logrus.NewEntry(logger), os.Args[1], os.Args[2:]); err != nil {
		if blog.IsCancelled(err) {
			fmt.Println("Cancelled")
			return
		}
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Entry, command string, args []string) error {
	creds := blog.NewBasicCredentials(cfg.Username, cfg.Password)

	if cfg.Protocol == config.ProtocolMetaWeblog {
		client, err := metaweblog.New(cfg.APIURL, creds, nil, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		return runMetaWeblog(ctx, cfg, client, command, args)
	}

	client := newAtomClient(cfg, creds, logger)
	return runAtom(ctx, cfg, client, command, args)
}

// atomAPI is the operation surface shared by the generic Atom client
// and the Blogger variant.
type atomAPI interface {
	GetUsersBlogs(ctx context.Context) ([]blog.BlogInfo, error)
	GetCategories(ctx context.Context, blogID string) ([]blog.Category, error)
	GetRecentPosts(ctx context.Context, blogID string, maxPosts int, includeCategories bool, before *time.Time) ([]*blog.Post, error)
	GetPost(ctx context.Context, blogID, postID string) (*blog.Post, error)
	NewPost(ctx context.Context, blogID string, post *blog.Post, publish bool) (*blog.PublishResult, error)
	EditPost(ctx context.Context, blogID string, post *blog.Post, publish bool) (*blog.PublishResult, error)
	DeletePost(ctx context.Context, blogID, postID string) error
}

func newAtomClient(cfg *config.Config, creds blog.Credentials, logger *logrus.Entry) atomAPI {
	clientCfg := atom.Config{
		FeedServiceURL: cfg.APIURL,
		Credentials:    creds,
		Confirmer:      blog.ConfirmerFunc(confirmOverwrite),
		Log:            logger,
		Options: blog.Options{
			SupportsCategories:    true,
			SupportsNewCategories: true,
			SupportsExcerpt:       true,
			SupportsCustomDate:    true,
			SupportsSlug:          true,
			SupportsPostAsDraft:   true,
		},
	}
	if cfg.HasCategoryScheme {
		clientCfg.Options.CategoryScheme = blog.SchemeURI(cfg.CategoryScheme)
	}

	switch cfg.Protocol {
	case config.ProtocolBlogger:
		return atom.NewBloggerClient(clientCfg)
	case config.ProtocolAtom03:
		clientCfg.Version = atom.V03
	}
	return atom.NewClient(clientCfg)
}

func runAtom(ctx context.Context, cfg *config.Config, client atomAPI, command string, args []string) error {
	switch command {
	case "blogs":
		blogs, err := client.GetUsersBlogs(ctx)
		if err != nil {
			return err
		}
		for _, b := range blogs {
			fmt.Printf("%s\t%s\t%s\n", b.ID, b.Name, b.HomepageURL)
		}
		return nil

	case "categories":
		categories, err := client.GetCategories(ctx, cfg.BlogID)
		if err != nil {
			return err
		}
		for _, cat := range categories {
			fmt.Printf("%s\t%s\n", cat.Term, cat.Label)
		}
		return nil

	case "recent":
		fs := flag.NewFlagSet("recent", flag.ExitOnError)
		count := fs.Int("n", 20, "maximum number of posts")
		fs.Parse(args)
		posts, err := client.GetRecentPosts(ctx, cfg.BlogID, *count, true, nil)
		if err != nil {
			return err
		}
		for _, post := range posts {
			date := ""
			if !post.DatePublished.IsZero() {
				date = post.DatePublished.Format(time.RFC3339)
			}
			fmt.Printf("%s\t%s\t%s\n", post.ID, date, post.Title)
		}
		return nil

	case "get":
		fs := flag.NewFlagSet("get", flag.ExitOnError)
		postID := fs.String("post", "", "post id (edit URI)")
		fs.Parse(args)
		post, err := client.GetPost(ctx, cfg.BlogID, *postID)
		if err != nil {
			return err
		}
		fmt.Printf("Title: %s\nPermalink: %s\nETag: %s\n\n%s\n", post.Title, post.Permalink, post.ETag, post.Contents)
		return nil

	case "publish":
		fs := flag.NewFlagSet("publish", flag.ExitOnError)
		postID := fs.String("post", "", "post id to edit (omit to create)")
		title := fs.String("title", "", "post title")
		file := fs.String("file", "-", "HTML content file, - for stdin")
		draft := fs.Bool("draft", false, "publish as draft")
		fs.Parse(args)

		contents, err := readContents(*file)
		if err != nil {
			return err
		}

		if *postID == "" {
			post := &blog.Post{Title: *title, Contents: contents}
			result, err := client.NewPost(ctx, cfg.BlogID, post, !*draft)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s\n", result.PostID)
			return nil
		}

		post, err := client.GetPost(ctx, cfg.BlogID, *postID)
		if err != nil {
			return err
		}
		if *title != "" {
			post.Title = *title
		}
		post.Contents = contents
		result, err := client.EditPost(ctx, cfg.BlogID, post, !*draft)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", result.PostID)
		return nil

	case "delete":
		fs := flag.NewFlagSet("delete", flag.ExitOnError)
		postID := fs.String("post", "", "post id (edit URI)")
		fs.Parse(args)
		if err := client.DeletePost(ctx, cfg.BlogID, *postID); err != nil {
			return err
		}
		fmt.Println("Deleted")
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runMetaWeblog(ctx context.Context, cfg *config.Config, client *metaweblog.Client, command string, args []string) error {
	switch command {
	case "blogs":
		blogs, err := client.GetUsersBlogs(ctx)
		if err != nil {
			return err
		}
		for _, b := range blogs {
			fmt.Printf("%s\t%s\t%s\n", b.ID, b.Name, b.HomepageURL)
		}
		return nil

	case "categories":
		categories, err := client.GetCategories(ctx, cfg.BlogID)
		if err != nil {
			return err
		}
		for _, cat := range categories {
			fmt.Printf("%s\t%s\n", cat.Term, cat.Label)
		}
		return nil

	case "recent":
		fs := flag.NewFlagSet("recent", flag.ExitOnError)
		count := fs.Int("n", 20, "maximum number of posts")
		fs.Parse(args)
		posts, err := client.GetRecentPosts(ctx, cfg.BlogID, *count)
		if err != nil {
			return err
		}
		for _, post := range posts {
			fmt.Printf("%s\t%s\n", post.ID, post.Title)
		}
		return nil

	case "get":
		fs := flag.NewFlagSet("get", flag.ExitOnError)
		postID := fs.String("post", "", "post id")
		fs.Parse(args)
		post, err := client.GetPost(ctx, *postID)
		if err != nil {
			return err
		}
		fmt.Printf("Title: %s\nPermalink: %s\n\n%s\n", post.Title, post.Permalink, post.Contents)
		return nil

	case "publish":
		fs := flag.NewFlagSet("publish", flag.ExitOnError)
		postID := fs.String("post", "", "post id to edit (omit to create)")
		title := fs.String("title", "", "post title")
		file := fs.String("file", "-", "HTML content file, - for stdin")
		draft := fs.Bool("draft", false, "publish as draft")
		fs.Parse(args)

		contents, err := readContents(*file)
		if err != nil {
			return err
		}
		post := &blog.Post{ID: *postID, Title: *title, Contents: contents}
		if *postID == "" {
			id, err := client.NewPost(ctx, cfg.BlogID, post, !*draft)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s\n", id)
			return nil
		}
		if err := client.EditPost(ctx, post, !*draft); err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", *postID)
		return nil

	case "delete":
		fs := flag.NewFlagSet("delete", flag.ExitOnError)
		postID := fs.String("post", "", "post id")
		fs.Parse(args)
		if err := client.DeletePost(ctx, *postID); err != nil {
			return err
		}
		fmt.Println("Deleted")
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func readContents(file string) (string, error) {
	if file == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	return string(data), nil
}

func confirmOverwrite() bool {
	fmt.Print("The post was changed on the server since it was fetched. Overwrite? [y/N] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: blogctl <command> [flags]

Commands:
  blogs        list the blogs the account can post to
  categories   list the blog's categories
  recent       list recent posts (-n)
  get          fetch one post (-post)
  publish      create or update a post (-post, -title, -file, -draft)
  delete       delete a post (-post)

Configuration comes from the environment (or a .env file):
BLOG_API_URL, BLOG_USERNAME, BLOG_PASSWORD, BLOG_ID, BLOG_PROTOCOL,
BLOG_CATEGORY_SCHEME, LOG_LEVEL.
`)
}
