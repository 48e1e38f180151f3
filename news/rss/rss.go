package rss

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mohammad-safakhou/newsie/models"
)

// Fetcher downloads and normalizes RSS feeds into articles.
type Fetcher struct {
	parser *gofeed.Parser
}

func NewFetcher() *Fetcher {
	return &Fetcher{parser: gofeed.NewParser()}
}

// Fetch parses one feed URL. Items are normalized the way the index expects
// them: a missing title becomes "Untitled", the source falls back to the
// feed title and then "Unknown Source", and an item without a date gets the
// fetch time.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]models.Article, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}

	source := feed.Title
	if source == "" {
		source = "Unknown Source"
	}

	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := item.Title
		if title == "" {
			title = "Untitled"
		}
		content := item.Description
		if content == "" {
			content = item.Content
		}
		published := time.Now()
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		articles = append(articles, models.Article{
			Title:       title,
			Content:     content,
			URL:         item.Link,
			PublishedAt: published,
			Source:      source,
		})
	}
	return articles, nil
}

// FetchAll collects articles from multiple feeds, stopping once maxArticles
// have been gathered. A failing feed is skipped rather than aborting the
// whole batch.
func (f *Fetcher) FetchAll(ctx context.Context, feedURLs []string, maxArticles int) ([]models.Article, []error) {
	var all []models.Article
	var errs []error
	for _, u := range feedURLs {
		articles, err := f.Fetch(ctx, u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, articles...)
		if maxArticles > 0 && len(all) >= maxArticles {
			all = all[:maxArticles]
			break
		}
	}
	return all, errs
}
