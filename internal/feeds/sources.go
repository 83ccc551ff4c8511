package feeds

import "github.com/thinkscotty/civicwire/internal/models"

// Sources is the built-in set of feeds ingested every run. Bias labels follow
// the AllSides media bias ratings for each outlet.
var Sources = []models.FeedSource{
	{
		ID:      "reuters-world-news",
		Name:    "Reuters World News",
		FeedURL: "https://feeds.reuters.com/Reuters/worldNews",
		Topic:   "World Affairs",
		Bias:    models.BiasCenter,
	},
	{
		ID:      "reuters-politics",
		Name:    "Reuters Politics",
		FeedURL: "https://feeds.reuters.com/Reuters/PoliticsNews",
		Topic:   "Federal Government",
		Bias:    models.BiasCenter,
	},
	{
		ID:      "ap-politics",
		Name:    "Associated Press Politics",
		FeedURL: "https://apnews.com/hub/politics/rss",
		Topic:   "Federal Government",
		Bias:    models.BiasCenter,
	},
	{
		ID:      "npr-politics",
		Name:    "NPR Politics",
		FeedURL: "https://feeds.npr.org/1014/rss.xml",
		Topic:   "Federal Government",
		Bias:    models.BiasLeanLeft,
	},
	{
		ID:      "pbs-politics",
		Name:    "PBS NewsHour",
		FeedURL: "https://www.pbs.org/newshour/feeds/rss/politics",
		Topic:   "Policy",
		Bias:    models.BiasCenter,
	},
	{
		ID:      "wsj-politics",
		Name:    "Wall Street Journal Politics",
		FeedURL: "https://feeds.a.dj.com/rss/RSSPolitics.xml",
		Topic:   "Federal Government",
		Bias:    models.BiasLeanRight,
	},
	{
		ID:      "fox-politics",
		Name:    "Fox News Politics",
		FeedURL: "https://moxie.foxnews.com/google-publisher/politics.xml",
		Topic:   "Federal Government",
		Bias:    models.BiasLeanRight,
	},
	{
		ID:      "washington-times-politics",
		Name:    "Washington Times Politics",
		FeedURL: "https://www.washingtontimes.com/rss/headlines/news/politics/",
		Topic:   "Federal Government",
		Bias:    models.BiasLeanRight,
	},
	{
		ID:      "cspan-congress",
		Name:    "C-SPAN Congress",
		FeedURL: "https://www.c-span.org/rss/?feed=congress",
		Topic:   "Congress",
		Bias:    models.BiasCenter,
	},
}

// FindSource looks up a source by ID.
func FindSource(sources []models.FeedSource, id string) (models.FeedSource, bool) {
	for _, s := range sources {
		if s.ID == id {
			return s, true
		}
	}
	return models.FeedSource{}, false
}
