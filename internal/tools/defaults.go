package tools

import "github.com/spigell/draft-n-pray/internal/crawl"

// Defaults returns the registry of every assistant tool in the order they are presented to the user.
func Defaults(kb KnowledgeBase, web crawl.Service, previewLength int) *Registry {
	return NewRegistry(
		NewSearchCV(kb),
		NewCrawlWebsite(web, previewLength),
		NewScrapePage(web),
		NewLoadCV(kb),
		NewCVStats(kb),
		NewDebugKnowledgeBase(kb),
	)
}
