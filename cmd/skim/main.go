package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pders01/skim/internal/config"
	"github.com/pders01/skim/internal/debuglog"
	"github.com/pders01/skim/internal/feed"
	"github.com/pders01/skim/internal/search"
	"github.com/pders01/skim/internal/storage"
)

// Version is the version of the application, set at build time
var Version = "dev"

const usage = `usage: skim [flags] <command> [args]

commands:
  add <url>              subscribe to a feed
  refresh [feed-id]      refresh one feed, or all feeds when no id is given
  list                   list subscribed feeds with unread counts
  entries <feed-id>      list a feed's entries (-unread / -read to filter)
  unread                 list unread entries across all feeds
  show <entry-id>        print an entry's content
  toggle <entry-id>      toggle an entry between read and unread
  rename <feed-id> <title>
  remove <feed-id>       delete a feed and its entries
  search <query>         full-text search over stored entries
  activity <feed-id>     per-day entry counts for the last 30 days
  preview <file>         parse a local feed document without storing it
`

func main() {
	var (
		dbPath         = flag.String("db", "", "Path to database file (overrides config)")
		configPath     = flag.String("config", "", "Path to configuration file")
		generateConfig = flag.Bool("generate-config", false, "Generate default config file")
		version        = flag.Bool("version", false, "Show version information")
		logLevel       = flag.String("log-level", "", "Log level (debug, info, warn, error, off; overrides config)")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Printf("skim %s\n", Version)
		return
	}

	if *generateConfig {
		home, _ := os.UserHomeDir()
		configFile := filepath.Join(home, ".config", "skim", "config.toml")
		if err := config.GenerateDefaultConfig(configFile); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		fmt.Printf("Generated default configuration at: %s\n", configFile)
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	level := cfg.Log.Level
	if *logLevel != "" {
		level = *logLevel
	}
	if err := debuglog.Setup(debuglog.ParseLogLevel(level), cfg.Log.Path); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer debuglog.Close()

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	manager := feed.NewManager(store, cfg)

	var engine *search.Engine
	if cfg.Search.Enabled {
		engine, err = search.Open(store, cfg.Search.Index)
		if err != nil {
			log.Fatalf("Failed to open search index: %v", err)
		}
		defer engine.Close()
		manager.SetIndexer(engine)
	}

	if err := run(flag.Args(), store, manager, engine); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, store *storage.Store, manager *feed.Manager, engine *search.Engine) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "add":
		if len(rest) != 1 {
			return fmt.Errorf("usage: skim add <url>")
		}
		id, err := manager.Subscribe(rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("subscribed: feed %s\n", id)
		return nil

	case "refresh":
		if len(rest) == 0 {
			return manager.RefreshAll()
		}
		id, err := parseFeedID(rest[0])
		if err != nil {
			return err
		}
		return manager.Refresh(id)

	case "list":
		return listFeeds(store)

	case "entries":
		fs := flag.NewFlagSet("entries", flag.ContinueOnError)
		unread := fs.Bool("unread", false, "only unread entries")
		read := fs.Bool("read", false, "only read entries")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("usage: skim entries [-unread|-read] <feed-id>")
		}
		id, err := parseFeedID(fs.Arg(0))
		if err != nil {
			return err
		}
		filter := storage.ReadFilterAll
		switch {
		case *unread:
			filter = storage.ReadFilterUnread
		case *read:
			filter = storage.ReadFilterRead
		}
		return listEntries(store, id, filter)

	case "unread":
		entries, err := store.ListAllUnread()
		if err != nil {
			return err
		}
		for _, ue := range entries {
			fmt.Printf("%6s  %-30.30s  %s\n", ue.Entry.ID, ue.FeedTitle, ue.Entry.Title)
		}
		return nil

	case "show":
		if len(rest) != 1 {
			return fmt.Errorf("usage: skim show <entry-id>")
		}
		id, err := parseEntryID(rest[0])
		if err != nil {
			return err
		}
		content, err := store.GetEntryContent(id)
		if err != nil {
			return err
		}
		if content.Content != "" {
			fmt.Println(content.Content)
		} else {
			fmt.Println(content.Description)
		}
		return nil

	case "toggle":
		if len(rest) != 1 {
			return fmt.Errorf("usage: skim toggle <entry-id>")
		}
		id, err := parseEntryID(rest[0])
		if err != nil {
			return err
		}
		return manager.ToggleRead(id)

	case "rename":
		if len(rest) != 2 {
			return fmt.Errorf("usage: skim rename <feed-id> <title>")
		}
		id, err := parseFeedID(rest[0])
		if err != nil {
			return err
		}
		return manager.Rename(id, rest[1])

	case "remove":
		if len(rest) != 1 {
			return fmt.Errorf("usage: skim remove <feed-id>")
		}
		id, err := parseFeedID(rest[0])
		if err != nil {
			return err
		}
		return manager.Delete(id)

	case "search":
		if len(rest) != 1 {
			return fmt.Errorf("usage: skim search <query>")
		}
		if engine == nil {
			return fmt.Errorf("search is disabled in the configuration")
		}
		results, err := engine.Search(rest[0], 25)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("%6s  %-50.50s  %s\n", r.EntryID, r.Title, r.Link)
		}
		return nil

	case "activity":
		if len(rest) != 1 {
			return fmt.Errorf("usage: skim activity <feed-id>")
		}
		id, err := parseFeedID(rest[0])
		if err != nil {
			return err
		}
		activity, err := store.FeedActivity(id, 30)
		if err != nil {
			return err
		}
		for _, count := range activity {
			fmt.Printf("%d ", count)
		}
		fmt.Println()
		return nil

	case "preview":
		if len(rest) != 1 {
			return fmt.Errorf("usage: skim preview <file>")
		}
		f, err := os.Open(rest[0])
		if err != nil {
			return err
		}
		defer f.Close()
		bundle, err := manager.Preview(f, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s feed: %s (%d entries)\n", bundle.Feed.Kind, bundle.Feed.Title, len(bundle.Entries))
		for _, entry := range bundle.Entries {
			fmt.Printf("  %-50.50s  %s\n", entry.Title, entry.Link)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func listFeeds(store *storage.Store) error {
	feeds, err := store.ListFeeds()
	if err != nil {
		return err
	}
	for _, f := range feeds {
		unread, err := store.CountUnread(f.ID)
		if err != nil {
			return err
		}
		title := f.Title
		if title == "" {
			title = f.FeedLink
		}
		fmt.Printf("%6s  (%d unread)  %s\n", f.ID, unread, title)
	}
	return nil
}

func listEntries(store *storage.Store, id storage.FeedID, filter storage.ReadFilter) error {
	entries, err := store.ListEntries(id, filter)
	if err != nil {
		return err
	}
	for _, e := range entries {
		marker := " "
		if e.Read() {
			marker = "*"
		}
		date := ""
		if e.PubDate != nil {
			date = e.PubDate.Format("2006-01-02")
		}
		fmt.Printf("%6s %s %-10s  %s\n", e.ID, marker, date, e.Title)
	}
	return nil
}

func parseFeedID(s string) (storage.FeedID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid feed id %q", s)
	}
	return storage.FeedID(n), nil
}

func parseEntryID(s string) (storage.EntryID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry id %q", s)
	}
	return storage.EntryID(n), nil
}
