package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hypergopher/postcache"
	"github.com/hypergopher/postcache/feed"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "postcache",
		Short: "Read-through post cache for a link blog",
		Long: strings.TrimSpace(`
Keeps every published post of a link blog in memory, serving listings, tag and
date lookups and relevance search from one snapshot that is refreshed in the
background and invalidated on every write.

Configuration is read from an optional TOML file and POSTCACHE_ environment
variables.
			`),
		Example: strings.TrimSpace(`
# keep the cache warm against a sqlite database
POSTCACHE_STORAGE_DRIVER=sqlite POSTCACHE_STORAGE_PATH=blog.db postcache serve

# import markdown posts, then search them
postcache --config blog.toml import ./posts
postcache --config blog.toml search "caching strategies"
		`),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	// postcache serve
	{
		cmd := &cobra.Command{
			Use:   "serve",
			Short: "Run the background cache refresh until interrupted",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, runServe)
			},
		}
		rootCmd.AddCommand(cmd)
	}

	// postcache import
	{
		cmd := &cobra.Command{
			Use:   "import <dir>",
			Short: "Import markdown posts with TOML or YAML frontmatter",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
					return runImport(ctx, a, args[0])
				})
			},
		}
		rootCmd.AddCommand(cmd)
	}

	// postcache export
	{
		cmd := &cobra.Command{
			Use:   "export <dir>",
			Short: "Export every active post as a markdown file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
					return runExport(ctx, a, args[0])
				})
			},
		}
		rootCmd.AddCommand(cmd)
	}

	// postcache list
	{
		var page int
		var tag string
		cmd := &cobra.Command{
			Use:   "list",
			Short: "List posts, newest first",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
					return runList(ctx, a, page, tag)
				})
			},
		}
		cmd.Flags().IntVar(&page, "page", 1, "page number")
		cmd.Flags().StringVar(&tag, "tag", "", "only list posts with this tag")
		rootCmd.AddCommand(cmd)
	}

	// postcache tags
	{
		cmd := &cobra.Command{
			Use:   "tags",
			Short: "List tags with their post counts",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, runTags)
			},
		}
		rootCmd.AddCommand(cmd)
	}

	// postcache search
	{
		var maxResults int
		var fullText bool
		cmd := &cobra.Command{
			Use:   "search <query>",
			Short: "Search posts by relevance",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
					return runSearch(ctx, a, strings.Join(args, " "), maxResults, fullText)
				})
			},
		}
		cmd.Flags().IntVar(&maxResults, "max", postcache.DefaultSearchResults, "maximum number of results")
		cmd.Flags().BoolVar(&fullText, "full-text", false, "use the full-text index query syntax")
		rootCmd.AddCommand(cmd)
	}

	// postcache archive
	{
		cmd := &cobra.Command{
			Use:   "archive <id>",
			Short: "Archive a post",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
					return runArchive(ctx, a, args[0])
				})
			},
		}
		rootCmd.AddCommand(cmd)
	}

	// postcache feed
	{
		cmd := &cobra.Command{
			Use:   "feed",
			Short: "Write the Atom feed to stdout",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), configPath, runFeed)
			},
		}
		rootCmd.AddCommand(cmd)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		abortErr(err)
	}
}

func abort(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func abortErr(err error) {
	abort("error: %v", err)
}

func withApp(ctx context.Context, configPath string, fn func(context.Context, *app) error) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func runServe(ctx context.Context, a *app) error {
	scheduler := postcache.NewRefreshScheduler(a.cache, postcache.SchedulerOptions{
		Interval:    a.cfg.RefreshInterval,
		WarmupDelay: a.cfg.WarmupDelay,
		Logger:      a.logger,
	})

	done := make(chan error, 1)
	go func() {
		done <- scheduler.Run(ctx)
	}()

	select {
	case <-scheduler.Ready():
		if loadedAt, ok := a.cache.LastRefreshed(); ok {
			a.logger.Info("post cache ready", slog.Time("loadedAt", loadedAt))
		}
	case <-ctx.Done():
	}

	return <-done
}

func runImport(ctx context.Context, a *app, dir string) error {
	format, err := postcache.ParseFrontmatterFormat(a.cfg.Frontmatter)
	if err != nil {
		return err
	}

	result, err := postcache.SyncMarkdown(ctx, postcache.NewMarkdownDir(dir, nil, format), a.cache, a.logger)
	if err != nil {
		return err
	}

	fmt.Printf("Created %d, updated %d, skipped %d posts\n", result.Created, result.Updated, result.Skipped)
	return nil
}

func runExport(ctx context.Context, a *app, dir string) error {
	format, err := postcache.ParseFrontmatterFormat(a.cfg.Frontmatter)
	if err != nil {
		return err
	}

	posts, err := a.cache.EnsureLoaded(ctx)
	if err != nil {
		return err
	}

	n, err := postcache.ExportMarkdown(ctx, postcache.NewMarkdownDir(dir, nil, format), posts)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d posts to %s\n", n, dir)
	return nil
}

func runList(ctx context.Context, a *app, page int, tag string) error {
	if tag != "" {
		posts, err := a.cache.GetPostsForTag(ctx, tag)
		if err != nil {
			return err
		}
		printPosts(a, posts)
		return nil
	}

	paginator, err := a.cache.GetPostsPaged(ctx, page, a.cfg.PageSize)
	if err != nil {
		return err
	}

	printPosts(a, paginator.Posts)
	fmt.Printf("Page %d of %d (%d posts)\n", paginator.CurrentPage, paginator.TotalPages, paginator.TotalPosts)
	return nil
}

func runTags(ctx context.Context, a *app) error {
	tags, err := a.cache.GetTags(ctx)
	if err != nil {
		return err
	}

	for _, tag := range tags {
		fmt.Printf("%-30s %d\n", tag.Name, tag.Count)
	}
	return nil
}

func runSearch(ctx context.Context, a *app, query string, maxResults int, fullText bool) error {
	search := a.cache.SearchPosts
	if fullText {
		search = a.cache.FullTextSearch
	}

	posts, err := search(ctx, query, maxResults)
	if err != nil {
		return err
	}

	printPosts(a, posts)
	return nil
}

func runArchive(ctx context.Context, a *app, id string) error {
	ok, err := a.cache.ArchivePost(ctx, id)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("post not found: %s", id)
	}

	fmt.Printf("Archived %s\n", id)
	return nil
}

func runFeed(ctx context.Context, a *app) error {
	out, err := feed.NewAtom(a.cfg.FeedOptions()).Generate(ctx, a.cache)
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(out)
	return err
}

func printPosts(a *app, posts []*postcache.Post) {
	loc := a.cfg.Location()
	for _, post := range posts {
		fmt.Printf("%s  %-40s %s\n", post.LocalCreatedDate(loc).Format("2006-01-02"), post.Title, post.URLPath(loc))
	}
}
