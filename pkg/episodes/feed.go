// Package episodes reads podcast RSS feeds into the episode catalogue.
package episodes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"podcast-search/pkg/domain"
	"podcast-search/pkg/httpclient"
)

var (
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrUnknownDuration = errors.New("episode duration unknown")
	ErrInvalidDuration = errors.New("invalid duration")
)

// EpisodeID derives the stable id of an episode from its audio enclosure URL.
func EpisodeID(audioURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(audioURL)).String()
}

// ParseDuration parses an itunes:duration value: "HH:MM:SS", "MM:SS" or a
// plain number of seconds.
func ParseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	}

	parts := strings.Split(s, ":")
	if len(parts) == 1 {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil || secs < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		return secs, nil
	}
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		total = total*60 + n
	}
	return float64(total), nil
}

// FeedCatalog holds the episodes of one or more feeds in memory. It serves
// episode durations straight from the feed, without a database.
type FeedCatalog struct {
	parser *gofeed.Parser
	client *httpclient.HTTPClient
	logger *slog.Logger

	mu       sync.RWMutex
	episodes map[string]domain.Episode
}

// NewFeedCatalog creates an empty catalogue.
func NewFeedCatalog(logger *slog.Logger) *FeedCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedCatalog{
		parser:   gofeed.NewParser(),
		client:   httpclient.NewClient(httpclient.BrowserClient),
		logger:   logger,
		episodes: make(map[string]domain.Episode),
	}
}

// Load fetches the feed at feedURL and adds its episodes. It returns the
// number of episodes read.
func (c *FeedCatalog) Load(ctx context.Context, feedURL string) (int, error) {
	resp, err := c.client.Get(ctx, feedURL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return 0, &httpclient.StatusError{URL: feedURL, StatusCode: resp.StatusCode}
	}
	return c.Parse(resp.Body)
}

// Parse reads an RSS feed and adds its episodes. Items without an audio
// enclosure are skipped; items with a missing or invalid duration are kept
// with duration 0.
func (c *FeedCatalog) Parse(r io.Reader) (int, error) {
	feed, err := c.parser.Parse(r)
	if err != nil {
		return 0, fmt.Errorf("failed to parse RSS feed: %w", err)
	}
	if feed == nil || len(feed.Items) == 0 {
		return 0, fmt.Errorf("feed contains no items")
	}

	parsed := make([]domain.Episode, 0, len(feed.Items))
	for _, item := range feed.Items {
		ep, ok := c.episodeFromItem(item)
		if ok {
			parsed = append(parsed, ep)
		}
	}

	c.mu.Lock()
	for _, ep := range parsed {
		c.episodes[ep.EID] = ep
	}
	c.mu.Unlock()

	c.logger.Info("feed parsed", "title", feed.Title, "items", len(feed.Items), "episodes", len(parsed))
	return len(parsed), nil
}

func (c *FeedCatalog) episodeFromItem(item *gofeed.Item) (domain.Episode, bool) {
	var audioURL string
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			audioURL = enc.URL
			break
		}
	}
	if audioURL == "" {
		c.logger.Warn("skipping item without enclosure", "title", item.Title)
		return domain.Episode{}, false
	}

	ep := domain.Episode{
		EID:      EpisodeID(audioURL),
		Title:    item.Title,
		AudioURL: audioURL,
	}
	if item.PublishedParsed != nil {
		ep.PubDate = item.PublishedParsed.UTC()
	}

	if item.ITunesExt != nil && item.ITunesExt.Duration != "" {
		d, err := ParseDuration(item.ITunesExt.Duration)
		if err != nil {
			c.logger.Warn("bad item duration", "title", item.Title, "error", err)
		} else {
			ep.Duration = d
		}
	} else {
		c.logger.Warn("item has no duration", "title", item.Title)
	}
	return ep, true
}

// Episode returns one episode by id.
func (c *FeedCatalog) Episode(eid string) (domain.Episode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ep, ok := c.episodes[eid]
	if !ok {
		return domain.Episode{}, fmt.Errorf("%w: %s", ErrEpisodeNotFound, eid)
	}
	return ep, nil
}

// Duration returns the playback length of an episode in seconds.
func (c *FeedCatalog) Duration(ctx context.Context, eid string) (float64, error) {
	ep, err := c.Episode(eid)
	if err != nil {
		return 0, err
	}
	if ep.Duration <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownDuration, eid)
	}
	return ep.Duration, nil
}

// Episodes returns all known episodes ordered by publication date, oldest first.
func (c *FeedCatalog) Episodes() []domain.Episode {
	c.mu.RLock()
	out := make([]domain.Episode, 0, len(c.episodes))
	for _, ep := range c.episodes {
		out = append(out, ep)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PubDate.Equal(out[j].PubDate) {
			return out[i].PubDate.Before(out[j].PubDate)
		}
		return out[i].EID < out[j].EID
	})
	return out
}
