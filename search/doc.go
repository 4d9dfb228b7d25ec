// Package search provides sift.SearchProvider implementations.
//
// Available providers:
//
//   - Serper: Google results through serper.dev, requires an API key
//   - Brave: Requires API key via X-Subscription-Token header
//   - Tavily: Requires API key, supports basic/advanced depth modes
//   - DuckDuckGo: Free, no API key required (parses lite.duckduckgo.com)
//
// Every provider returns at most maxResults results (DefaultMaxResults when
// maxResults is not positive). A missing API key fails with an error
// matching sift.ErrConfiguration; transport failures and non-2xx responses
// match sift.ErrProviderUnavailable.
//
// # Serper Example
//
//	provider := search.NewSerper("your-api-key")
//	results, err := provider.Search(ctx, "capital of France", 5)
//
// # DuckDuckGo Example
//
//	provider := search.NewDuckDuckGo()
//	results, err := provider.Search(ctx, "golang web frameworks", 5)
//
// # Tavily Example
//
//	provider := search.NewTavily("your-api-key", "advanced")
//	results, err := provider.Search(ctx, "climate change research 2024", 10)
package search
